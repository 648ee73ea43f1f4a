package cmd

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jjenkins/factbase/internal/service"
	"github.com/spf13/cobra"
)

var resolveID int64
var resolveShortName string

var resolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "Show which organization an agency reference resolves to",
	Long: `Resolve runs an agency reference through the resolver against the current
organizations table and prints the match, its tier and similarity.

Examples:
  ./factbase resolve "Envronmental Protection Agcy"
  ./factbase resolve --id 145
  ./factbase resolve --short-name HHS`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := service.AgencyQuery{ExternalID: resolveID, ShortName: resolveShortName}
		if len(args) == 1 {
			q.Name = strings.TrimSpace(args[0])
		}
		if q.Label() == "" {
			return errors.New("a name, --id or --short-name is required")
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		out := map[string]any{"query": q.Label(), "matched": false}
		if match, ok := a.resolver.Resolve(q); ok {
			out["matched"] = true
			out["match"] = match
			if org, err := a.stores.Organizations.GetByID(cmd.Context(), match.OrganizationID); err == nil && org != nil {
				out["official_name"] = org.OfficialName
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().Int64Var(&resolveID, "id", 0, "Federal Register agency ID")
	resolveCmd.Flags().StringVar(&resolveShortName, "short-name", "", "Agency acronym")
}
