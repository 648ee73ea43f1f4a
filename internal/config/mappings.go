package config

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAgencyMappings maps known agency name variants to the acronym of
// the canonical organization.
var DefaultAgencyMappings = map[string]string{
	"environmental protection agency":                  "EPA",
	"department of health and human services":          "HHS",
	"department of transportation":                     "DOT",
	"securities and exchange commission":               "SEC",
	"federal communications commission":                "FCC",
	"food and drug administration":                     "FDA",
	"centers for medicare & medicaid services":         "CMS",
	"centers for medicare and medicaid services":       "CMS",
	"internal revenue service":                         "IRS",
	"federal aviation administration":                  "FAA",
	"occupational safety and health administration":    "OSHA",
	"national aeronautics and space administration":    "NASA",
	"department of defense":                            "DOD",
	"department of agriculture":                        "USDA",
	"agriculture department":                           "USDA",
	"department of commerce":                           "DOC",
	"commerce department":                              "DOC",
	"department of education":                          "ED",
	"department of energy":                             "DOE",
	"energy department":                                "DOE",
	"department of homeland security":                  "DHS",
	"homeland security department":                     "DHS",
	"department of housing and urban development":      "HUD",
	"department of the interior":                       "DOI",
	"interior department":                              "DOI",
	"department of justice":                            "DOJ",
	"justice department":                               "DOJ",
	"department of labor":                              "DOL",
	"labor department":                                 "DOL",
	"department of state":                              "DOS",
	"state department":                                 "DOS",
	"department of the treasury":                       "TREASURY",
	"treasury department":                              "TREASURY",
	"dept. of treasury":                                "TREASURY",
	"department of veterans affairs":                   "VA",
	"veterans affairs department":                      "VA",
	"health and human services department":             "HHS",
	"transportation department":                        "DOT",
	"defense department":                               "DOD",
	"education department":                             "ED",
	"federal reserve system":                           "FED",
	"federal trade commission":                         "FTC",
	"nuclear regulatory commission":                    "NRC",
	"consumer financial protection bureau":             "CFPB",
	"bureau of consumer financial protection":          "CFPB",
	"small business administration":                    "SBA",
	"social security administration":                   "SSA",
	"housing and urban development department":         "HUD",
	"occupational safety and health review commission": "OSHRC",
	"national oceanic and atmospheric administration":  "NOAA",
	"office of the united states trade representative": "USTR",
	"executive office of the president":                "EOP",
}

// LoadAgencyMappings returns DefaultAgencyMappings extended with the
// name: ACRONYM pairs of the YAML file at path. Entries in the file win.
// An empty path returns the defaults.
func LoadAgencyMappings(path string) (map[string]string, error) {
	out := maps.Clone(DefaultAgencyMappings)
	if path == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agency mappings %s: %w", path, err)
	}
	var extra map[string]string
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse agency mappings %s: %w", path, err)
	}
	maps.Copy(out, extra)
	return out, nil
}
