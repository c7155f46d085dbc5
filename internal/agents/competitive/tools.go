package competitive

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// ChemblMatch is a trimmed ChEMBL molecule record.
type ChemblMatch struct {
	ChemblID     string `json:"chembl_id"`
	PrefName     string `json:"pref_name"`
	MoleculeType string `json:"molecule_type"`
}

// Brand pairs a marketed brand name with its manufacturers.
type Brand struct {
	BrandName    []string `json:"brand_name"`
	Manufacturer []string `json:"manufacturer"`
}

// Competitor is one deduplicated entry in the assembled landscape.
type Competitor struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	ChemblID string `json:"chembl_id,omitempty"`
}

// Landscape is the structured result of the composite analysis.
type Landscape struct {
	Drug          string                 `json:"drug"`
	PubChem       map[string]interface{} `json:"pubchem"`
	Synonyms      []string               `json:"pubchem_synonyms"`
	ChemblMatches []ChemblMatch          `json:"chembl_matches"`
	ChemblStatus  string                 `json:"chembl_status"`
	Brands        []Brand                `json:"manufacturers_brands"`
	Competitors   []Competitor           `json:"competitors"`
	Summary       map[string]interface{} `json:"summary"`
}

// lookupChembl queries ChEMBL molecules by preferred name. Soft-fails to an
// empty list so the composite never aborts on one source.
func lookupChembl(ctx context.Context, d agents.Deps, drugName string, limit int) ([]ChemblMatch, bool) {
	var out struct {
		Molecules []struct {
			MoleculeChemblID string `json:"molecule_chembl_id"`
			PrefName         string `json:"pref_name"`
			MoleculeType     string `json:"molecule_type"`
		} `json:"molecules"`
	}
	err := d.Client.GetJSON(ctx, d.Sources.ChEMBLURL+"/molecule", map[string]string{
		"format":    "json",
		"pref_name": drugName,
	}, nil, &out)
	if err != nil {
		return nil, false
	}
	matches := make([]ChemblMatch, 0, limit)
	for _, m := range out.Molecules {
		if len(matches) >= limit {
			break
		}
		matches = append(matches, ChemblMatch{
			ChemblID:     m.MoleculeChemblID,
			PrefName:     m.PrefName,
			MoleculeType: m.MoleculeType,
		})
	}
	return matches, true
}

// lookupPubChem fetches basic compound metadata as a quick identity check.
func lookupPubChem(ctx context.Context, d agents.Deps, drugName string) map[string]interface{} {
	var out struct {
		PropertyTable struct {
			Properties []map[string]interface{} `json:"Properties"`
		} `json:"PropertyTable"`
	}
	u := fmt.Sprintf("%s/compound/name/%s/property/Title/JSON", d.Sources.PubChemURL, url.PathEscape(drugName))
	if err := d.Client.GetJSON(ctx, u, nil, nil, &out); err != nil {
		return map[string]interface{}{}
	}
	if len(out.PropertyTable.Properties) == 0 {
		return map[string]interface{}{}
	}
	return out.PropertyTable.Properties[0]
}

// lookupPubChemSynonyms fetches synonyms to seed competitor and alias names.
func lookupPubChemSynonyms(ctx context.Context, d agents.Deps, drugName string, limit int) []string {
	var out struct {
		InformationList struct {
			Information []struct {
				Synonym []string `json:"Synonym"`
			} `json:"Information"`
		} `json:"InformationList"`
	}
	u := fmt.Sprintf("%s/compound/name/%s/synonyms/JSON", d.Sources.PubChemURL, url.PathEscape(drugName))
	if err := d.Client.GetJSON(ctx, u, nil, nil, &out); err != nil {
		return nil
	}
	if len(out.InformationList.Information) == 0 {
		return nil
	}
	syns := out.InformationList.Information[0].Synonym
	if len(syns) > limit {
		syns = syns[:limit]
	}
	return syns
}

// lookupManufacturers queries openFDA labels for manufacturers and brands.
func lookupManufacturers(ctx context.Context, d agents.Deps, drugName string, limit int) []Brand {
	var out struct {
		Results []struct {
			OpenFDA struct {
				BrandName        []string `json:"brand_name"`
				ManufacturerName []string `json:"manufacturer_name"`
			} `json:"openfda"`
		} `json:"results"`
	}
	err := d.Client.GetJSON(ctx, d.Sources.OpenFDAURL+"/drug/label.json", map[string]string{
		"search": fmt.Sprintf("openfda.brand_name:%q", drugName),
		"limit":  fmt.Sprintf("%d", limit),
	}, nil, &out)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var brands []Brand
	for _, r := range out.Results {
		key := strings.Join(r.OpenFDA.BrandName, "|") + "\x00" + strings.Join(r.OpenFDA.ManufacturerName, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		brands = append(brands, Brand{BrandName: r.OpenFDA.BrandName, Manufacturer: r.OpenFDA.ManufacturerName})
	}
	return brands
}

// AssembleCompetitors merges ChEMBL analogues, synonyms and marketed brands
// into a deduplicated competitor list, keeping first-source attribution.
func AssembleCompetitors(drugName string, chembl []ChemblMatch, synonyms []string, brands []Brand) []Competitor {
	var competitors []Competitor
	for _, c := range chembl {
		if c.PrefName != "" && !strings.EqualFold(c.PrefName, drugName) {
			competitors = append(competitors, Competitor{Name: c.PrefName, Source: "ChEMBL", ChemblID: c.ChemblID})
		}
	}
	for _, syn := range synonyms {
		competitors = append(competitors, Competitor{Name: syn, Source: "PubChem synonym"})
	}
	for _, b := range brands {
		for _, bn := range b.BrandName {
			if bn != "" {
				competitors = append(competitors, Competitor{Name: bn, Source: "OpenFDA"})
			}
		}
	}

	seen := map[string]bool{}
	deduped := competitors[:0]
	for _, c := range competitors {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		deduped = append(deduped, c)
	}
	return deduped
}

// landscapeTool runs the composite landscape analysis across all sources.
func landscapeTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "competitive_landscape",
		Description: "Build a competitive landscape for a drug from ChEMBL, PubChem and openFDA labels.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"drug_name": map[string]interface{}{
					"type":        "string",
					"description": "Drug name to analyze",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Per-source result limit",
				},
			},
			"required": []string{"drug_name"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			drugName, _ := args["drug_name"].(string)
			if drugName == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "drug_name is required"}
			}
			limit := agents.IntArg(args, "limit", 5)

			pubchem := lookupPubChem(ctx, d, drugName)
			chembl, chemblOK := lookupChembl(ctx, d, drugName, limit)
			synonyms := lookupPubChemSynonyms(ctx, d, drugName, 10)
			brands := lookupManufacturers(ctx, d, drugName, limit)
			competitors := AssembleCompetitors(drugName, chembl, synonyms, brands)

			chemblStatus := "ok"
			note := ""
			if !chemblOK {
				chemblStatus = "unavailable"
				note = "ChEMBL unavailable"
			}

			landscape := Landscape{
				Drug:          drugName,
				PubChem:       pubchem,
				Synonyms:      synonyms,
				ChemblMatches: chembl,
				ChemblStatus:  chemblStatus,
				Brands:        brands,
				Competitors:   competitors,
				Summary: map[string]interface{}{
					"competitors_found":   len(competitors),
					"manufacturers_found": len(brands),
					"chembl_status":       chemblStatus,
					"note":                note,
				},
			}
			return map[string]interface{}{"status": core.StatusSuccess, "landscape": landscape}
		},
	}
}
