// Package pathway turns the unordered reaction sets produced by the predictor
// into the linear chain of primary reactions leading to a product.
//
// Cofactors are recognised two ways: by name against a static list, and
// structurally, as any metabolite taking part in more than two reactions of
// the pathway. A cofactor that happens to appear in exactly two reactions and
// is not on the static list is therefore treated as a primary metabolite.
// Downstream consumers rely on that output shape, so it is kept as is.
package pathway

import (
	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// Reduce derives the primary reaction chain of raw that ends in the
// metabolite productID, ordered from the most upstream reaction to the one
// forming the product. A pathway without the product yields an empty result.
func Reduce(raw model.RawPathway, productID string) model.ReducedPathway {
	r := newReducer(raw.Reactions)
	graph, primaries := r.build(productID)

	reduced := model.ReducedPathway{
		Reactions:    make([]model.Reaction, 0, graph.Len()),
		PrimaryNodes: make([]model.Metabolite, 0, graph.Len()),
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return reduced
	}
	for _, idx := range order {
		reduced.Reactions = append(reduced.Reactions, raw.Reactions[idx])
		reduced.PrimaryNodes = append(reduced.PrimaryNodes, primaries[idx])
	}
	return reduced
}

type reducer struct {
	reactions     []model.Reaction
	metabolites   map[string]model.Metabolite
	participation map[string][]int
	excluded      map[string]bool
}

func newReducer(reactions []model.Reaction) *reducer {
	r := &reducer{
		reactions:     reactions,
		metabolites:   make(map[string]model.Metabolite),
		participation: make(map[string][]int),
		excluded:      make(map[string]bool),
	}
	for i, reaction := range reactions {
		seen := make(map[string]bool, len(reaction.Metabolites))
		for _, p := range reaction.Metabolites {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			if _, ok := r.metabolites[p.ID]; !ok {
				r.metabolites[p.ID] = p.Metabolite
			}
			r.participation[p.ID] = append(r.participation[p.ID], i)
		}
	}
	for name := range defaultCofactors {
		r.excluded[name] = true
	}
	for id, idxs := range r.participation {
		if len(idxs) > 2 {
			r.excluded[r.metabolites[id].Name] = true
		}
	}
	return r
}

type frame struct {
	metabolite  model.Metabolite
	predecessor int
}

const noPredecessor = -1

// build walks from the product towards the substrates. Each reaction is used
// at most once; the stack order reproduces a depth-first visit in which
// siblings are explored in the order they appear in the reaction.
func (r *reducer) build(productID string) (*ReactionGraph, map[int]model.Metabolite) {
	graph := NewReactionGraph()
	primaries := make(map[int]model.Metabolite)

	product, ok := r.metabolites[productID]
	if !ok {
		return graph, primaries
	}

	consumed := make([]bool, len(r.reactions))
	stack := []frame{{metabolite: product, predecessor: noPredecessor}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx, ok := r.uniqueReaction(f.metabolite.ID, consumed)
		if !ok {
			continue
		}
		consumed[idx] = true
		primaries[idx] = f.metabolite
		graph.AddNode(idx)
		if f.predecessor != noPredecessor {
			if err := graph.AddEdge(idx, f.predecessor); err != nil {
				continue
			}
		}

		next := r.primaryOpposites(idx, f.metabolite.ID)
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, frame{metabolite: next[i], predecessor: idx})
		}
	}
	return graph, primaries
}

// uniqueReaction returns the only unconsumed reaction containing the
// metabolite. Zero or several candidates mean a starting material or a
// cofactor, and the branch stops there.
func (r *reducer) uniqueReaction(metaboliteID string, consumed []bool) (int, bool) {
	found := noPredecessor
	for _, idx := range r.participation[metaboliteID] {
		if consumed[idx] {
			continue
		}
		if found != noPredecessor {
			return 0, false
		}
		found = idx
	}
	return found, found != noPredecessor
}

// primaryOpposites lists the metabolites on the other side of the reaction
// from metaboliteID, leaving out cofactors.
func (r *reducer) primaryOpposites(idx int, metaboliteID string) []model.Metabolite {
	reaction := r.reactions[idx]
	coef, _ := reaction.Coefficient(metaboliteID)
	produced := coef > 0

	var out []model.Metabolite
	seen := make(map[string]bool)
	for _, p := range reaction.Metabolites {
		if (p.Coefficient > 0) == produced || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if r.excluded[p.Name] {
			continue
		}
		out = append(out, p.Metabolite)
	}
	return out
}
