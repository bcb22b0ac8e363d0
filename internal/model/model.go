package model

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Metabolite is a chemical species taking part in reactions.
type Metabolite struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Formula string `json:"formula"`
}

// Participant is a metabolite together with its stoichiometric coefficient in
// one reaction. Negative coefficients are consumed, positive are produced.
type Participant struct {
	Metabolite
	Coefficient float64 `json:"coefficient"`
}

type Reaction struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Metabolites []Participant `json:"metabolites"`
	LowerBound  float64       `json:"lower_bound,omitempty"`
	UpperBound  float64       `json:"upper_bound,omitempty"`
}

// Coefficient returns the coefficient of the metabolite with the given id and
// whether it takes part in the reaction at all.
func (r Reaction) Coefficient(metaboliteID string) (float64, bool) {
	for _, p := range r.Metabolites {
		if p.ID == metaboliteID {
			return p.Coefficient, true
		}
	}
	return 0, false
}

// RawPathway is one unordered candidate produced by the predictor.
type RawPathway struct {
	Reactions []Reaction `json:"reactions"`
}

// ReducedPathway is the primary chain derived from a RawPathway.
//
// - Reactions and PrimaryNodes always have the same length.
// - PrimaryNodes[i] is the metabolite through which Reactions[i] was reached.
type ReducedPathway struct {
	Reactions    []Reaction   `json:"reactions"`
	PrimaryNodes []Metabolite `json:"primary_nodes"`
}

// JobKey identifies one prediction job.
type JobKey struct {
	ModelID          string `json:"model_id"`
	UniversalModelID string `json:"universal_model_id"`
	CarbonSourceID   string `json:"carbon_source_id"`
	ProductID        string `json:"product_id"`
}

// Complete reports whether every field of the key is set.
func (k JobKey) Complete() bool {
	return k.ModelID != "" && k.UniversalModelID != "" && k.CarbonSourceID != "" && k.ProductID != ""
}

// ReactionSummary is the persisted form of a reaction in a pathway result.
type ReactionSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ReactionString string `json:"reaction_string"`
}

// PathwayResult is one element of JobRecord.Pathways.
type PathwayResult struct {
	Reactions    []ReactionSummary `json:"reactions"`
	Model        json.RawMessage   `json:"model"`
	PrimaryNodes []Metabolite      `json:"primary_nodes"`
}

// JobRecord is the persisted state of a prediction job.
//
// There is no running flag: a not-ready record is pending or stalled depending
// on how long ago UpdatedAt was bumped.
type JobRecord struct {
	Key       JobKey          `json:"key"`
	RunID     string          `json:"runId"`
	Ready     bool            `json:"ready"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Pathways  []PathwayResult `json:"pathways"`
}

// Stalled reports whether a not-ready record has gone without updates for at
// least timeout.
func (r JobRecord) Stalled(now time.Time, timeout time.Duration) bool {
	return !r.Ready && now.Sub(r.UpdatedAt) >= timeout
}

type ReferenceKind string

const (
	KindModel          ReferenceKind = "model"
	KindUniversalModel ReferenceKind = "universal_model"
	KindCarbonSource   ReferenceKind = "carbon_source"
	KindProduct        ReferenceKind = "product"
)

// ReferenceKinds lists every reference list in load order.
var ReferenceKinds = []ReferenceKind{KindUniversalModel, KindModel, KindCarbonSource, KindProduct}

// ReferenceItem is an entry of one of the reference lists. UniversalModels is
// only meaningful for products.
type ReferenceItem struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	UniversalModels []string `json:"universal_models,omitempty" yaml:"universal_models,omitempty"`
}
