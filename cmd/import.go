package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/jjenkins/factbase/internal/model"
	"github.com/spf13/cobra"
)

const allSources = "all"

var importFile string
var importForce bool

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Run one sync immediately",
	Long: `Import runs a single sync of a source in the foreground and prints its
statistics. Sources are agencies, plum, legislators, regulations, or all to
run every source in order.

Examples:
  # Sync the Federal Register agency list
  ./factbase import agencies

  # Re-import the legislators even if the upstream commit is unchanged
  ./factbase import legislators --force

  # Load a PLUM CSV from disk instead of downloading it
  ./factbase import plum --file plum.csv`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(sourceNames(), allSources),
	RunE:      runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Read the source from a local file (agencies, plum, legislators)")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Ignore the stored version marker")
}

// errRecordFailures makes the command exit non-zero after a run that
// completed with per-record errors.
var errRecordFailures = errors.New("import finished with record errors")

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := []model.SyncSource{model.SyncSource(args[0])}
	if args[0] == allSources {
		if importFile != "" {
			return fmt.Errorf("--file cannot be combined with %q", allSources)
		}
		sources = model.SyncSources
	} else if !slices.Contains(sourceNames(), args[0]) {
		return fmt.Errorf("unknown source %q, expected one of %s or %s", args[0], strings.Join(sourceNames(), ", "), allSources)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if importFile != "" {
		if err := a.useFile(sources[0], importFile); err != nil {
			return err
		}
	}

	var failed bool
	for _, source := range sources {
		stats, err := a.orch.Run(ctx, source, importForce)
		if stats != nil {
			printStatistics(cmd, stats)
		}
		if err != nil {
			return err
		}
		failed = failed || stats.Errors > 0
	}
	if failed {
		return errRecordFailures
	}
	return nil
}

func (a *app) useFile(source model.SyncSource, path string) error {
	switch source {
	case model.SyncAgencies:
		a.agencies.File = path
	case model.SyncPlum:
		a.plum.File = path
	case model.SyncLegislators:
		a.legislators.File = path
	default:
		return fmt.Errorf("source %s cannot be imported from a file", source)
	}
	return nil
}

func printStatistics(cmd *cobra.Command, s *model.SyncStatistics) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== %s sync %s ===\n", s.Source, s.State)
	if s.NoChange {
		fmt.Fprintf(out, "No upstream change (marker %s)\n", s.Marker)
		return
	}
	fmt.Fprintf(out, "Fetched:   %d\n", s.Fetched)
	fmt.Fprintf(out, "Created:   %d\n", s.Created)
	fmt.Fprintf(out, "Updated:   %d\n", s.Updated)
	fmt.Fprintf(out, "Unchanged: %d\n", s.Unchanged)
	fmt.Fprintf(out, "Skipped:   %d\n", s.Skipped)
	fmt.Fprintf(out, "Errors:    %d\n", s.Errors)
	fmt.Fprintf(out, "Linked agencies:    %d\n", s.LinkedAgencies)
	fmt.Fprintf(out, "Unmatched agencies: %d\n", s.UnmatchedAgencies)
	if s.Marker != "" {
		fmt.Fprintf(out, "Marker:    %s -> %s\n", valueOr(s.PreviousMarker, "(none)"), s.Marker)
	}
	fmt.Fprintf(out, "Duration:  %s\n", s.Duration().Round(time.Millisecond))
	for _, e := range s.ErrorSamples {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	for _, n := range s.UnmatchedNames {
		fmt.Fprintf(out, "  unmatched: %s\n", n)
	}
	if s.FailureReason != "" {
		fmt.Fprintf(out, "Failure:   %s\n", s.FailureReason)
	}
}

func sourceNames() []string {
	names := make([]string, len(model.SyncSources))
	for i, s := range model.SyncSources {
		names[i] = string(s)
	}
	return names
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
