package pathway

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

func TestReactionString(t *testing.T) {
	r := rxn("1", "A + 2 B", "C")
	assert.Equal(t, "A + 2 B --> C", ReactionString(r))

	r.LowerBound, r.UpperBound = -1000, 1000
	assert.Equal(t, "A + 2 B <=> C", ReactionString(r))

	r.LowerBound, r.UpperBound = -1000, 0
	assert.Equal(t, "A + 2 B <-- C", ReactionString(r))

	uptake := rxn("EX", "", "glc")
	assert.Equal(t, "--> glc", ReactionString(uptake))
}

func TestExportModel(t *testing.T) {
	raw := model.RawPathway{Reactions: []model.Reaction{
		rxn("1", "A + B", "C"),
		rxn("2", "K", "A"),
	}}

	blob, err := ExportModel(raw)
	require.NoError(t, err)

	var doc struct {
		ID          string             `json:"id"`
		Metabolites []model.Metabolite `json:"metabolites"`
		Reactions   []struct {
			ID          string             `json:"id"`
			Metabolites map[string]float64 `json:"metabolites"`
		} `json:"reactions"`
	}
	require.NoError(t, json.Unmarshal(blob, &doc))
	assert.Equal(t, "pathway", doc.ID)
	assert.Len(t, doc.Metabolites, 4)
	require.Len(t, doc.Reactions, 2)
	assert.Equal(t, map[string]float64{"A": -1, "B": -1, "C": 1}, doc.Reactions[0].Metabolites)
}

func TestSummarize(t *testing.T) {
	raw := model.RawPathway{Reactions: []model.Reaction{
		rxn("1", "A + B", "C"),
		rxn("2", "K + L", "A + D"),
	}}

	result := Summarize(raw, Reduce(raw, "C"))

	require.Len(t, result.Reactions, 2)
	assert.Equal(t, model.ReactionSummary{ID: "2", Name: "reaction 2", ReactionString: "K + L --> A + D"}, result.Reactions[0])
	assert.Equal(t, "C", result.PrimaryNodes[1].ID)
	assert.True(t, json.Valid(result.Model))
	assert.NotEqual(t, "null", string(result.Model))
}

func TestSummarizeUnserializableModel(t *testing.T) {
	bad := rxn("1", "A", "C")
	bad.Metabolites[0].Coefficient = math.NaN()
	raw := model.RawPathway{Reactions: []model.Reaction{bad}}

	result := Summarize(raw, Reduce(raw, "C"))

	assert.Equal(t, "null", string(result.Model))
	assert.Len(t, result.Reactions, 1)
}
