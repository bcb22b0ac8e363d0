package pathway

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// ReactionString renders a reaction with metabolite names, for example
// "A + 2 B <=> C".
func ReactionString(r model.Reaction) string {
	var reactants, products []string
	for _, p := range r.Metabolites {
		term := p.Name
		if term == "" {
			term = p.ID
		}
		if c := math.Abs(p.Coefficient); c != 1 {
			term = strconv.FormatFloat(c, 'f', -1, 64) + " " + term
		}
		if p.Coefficient > 0 {
			products = append(products, term)
		} else {
			reactants = append(reactants, term)
		}
	}
	parts := []string{strings.Join(reactants, " + "), arrow(r), strings.Join(products, " + ")}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func arrow(r model.Reaction) string {
	switch {
	case r.LowerBound < 0 && r.UpperBound > 0:
		return "<=>"
	case r.LowerBound < 0 && r.UpperBound <= 0:
		return "<--"
	default:
		return "-->"
	}
}

type exportedReaction struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Metabolites map[string]float64 `json:"metabolites"`
	LowerBound  float64            `json:"lower_bound"`
	UpperBound  float64            `json:"upper_bound"`
}

type exportedModel struct {
	ID          string             `json:"id"`
	Metabolites []model.Metabolite `json:"metabolites"`
	Reactions   []exportedReaction `json:"reactions"`
}

// ExportModel serializes the reaction set of a pathway as a standalone model
// document for downstream tools.
func ExportModel(raw model.RawPathway) (json.RawMessage, error) {
	out := exportedModel{
		ID:          "pathway",
		Metabolites: []model.Metabolite{},
		Reactions:   make([]exportedReaction, 0, len(raw.Reactions)),
	}
	seen := make(map[string]bool)
	for _, r := range raw.Reactions {
		er := exportedReaction{
			ID:          r.ID,
			Name:        r.Name,
			Metabolites: make(map[string]float64, len(r.Metabolites)),
			LowerBound:  r.LowerBound,
			UpperBound:  r.UpperBound,
		}
		for _, p := range r.Metabolites {
			er.Metabolites[p.ID] = p.Coefficient
			if !seen[p.ID] {
				seen[p.ID] = true
				out.Metabolites = append(out.Metabolites, p.Metabolite)
			}
		}
		out.Reactions = append(out.Reactions, er)
	}
	return json.Marshal(out)
}

// Summarize builds the persisted form of a reduced pathway. The model blob
// covers every reaction of raw. If raw cannot be serialized (non-finite
// coefficients) the model is null and the chain is still kept.
func Summarize(raw model.RawPathway, reduced model.ReducedPathway) model.PathwayResult {
	result := model.PathwayResult{
		Reactions:    make([]model.ReactionSummary, 0, len(reduced.Reactions)),
		PrimaryNodes: append([]model.Metabolite{}, reduced.PrimaryNodes...),
		Model:        json.RawMessage("null"),
	}
	for _, r := range reduced.Reactions {
		result.Reactions = append(result.Reactions, model.ReactionSummary{
			ID:             r.ID,
			Name:           r.Name,
			ReactionString: ReactionString(r),
		})
	}
	if blob, err := ExportModel(raw); err == nil {
		result.Model = blob
	}
	return result
}
