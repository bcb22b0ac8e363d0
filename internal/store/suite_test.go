package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// runStoreSuite exercises the behaviour every backend must share. prefix keeps
// keys unique when the backend is a shared database.
func runStoreSuite(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	universal := prefix + "metanetx_universal_model_bigg"
	seedReferences(t, s, prefix, universal)

	key := model.JobKey{
		ModelID:          prefix + "iJO1366",
		UniversalModelID: universal,
		CarbonSourceID:   prefix + "EX_glc_lp_e_rp_",
		ProductID:        prefix + "vanillin",
	}

	t.Run("is available", func(t *testing.T) {
		ok, err := s.IsAvailable(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		sameModel := key
		sameModel.ModelID = universal
		ok, err = s.IsAvailable(ctx, sameModel)
		require.NoError(t, err)
		assert.True(t, ok, "universal model doubles as model")

		for name, mutate := range map[string]func(*model.JobKey){
			"unknown product":         func(k *model.JobKey) { k.ProductID = prefix + "unobtainium" },
			"product of other model":  func(k *model.JobKey) { k.ProductID = prefix + "ethanol" },
			"unknown model":           func(k *model.JobKey) { k.ModelID = prefix + "iXX0" },
			"unknown carbon source":   func(k *model.JobKey) { k.CarbonSourceID = prefix + "sucrose" },
			"unknown universal model": func(k *model.JobKey) { k.UniversalModelID = prefix + "nope" },
		} {
			bad := key
			mutate(&bad)
			ok, err := s.IsAvailable(ctx, bad)
			require.NoError(t, err, name)
			assert.False(t, ok, name)
		}
	})

	t.Run("list references", func(t *testing.T) {
		products, err := s.ListReferences(ctx, model.KindProduct, "")
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "ethanol", prefix + "vanillin"}, referenceIDs(filterPrefix(products, prefix)))

		filtered, err := s.ListReferences(ctx, model.KindProduct, universal)
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "vanillin"}, referenceIDs(filtered))

		none, err := s.ListReferences(ctx, model.KindCarbonSource, prefix+"nothing-lists-this")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("record lifecycle", func(t *testing.T) {
		_, err := s.GetRecord(ctx, key)
		require.ErrorIs(t, err, model.ErrNotFound)

		created := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
		rec := model.JobRecord{Key: key, RunID: "run-1", CreatedAt: created, UpdatedAt: created}
		require.NoError(t, s.CreateRecord(ctx, rec))
		require.ErrorIs(t, s.CreateRecord(ctx, model.JobRecord{Key: key, RunID: "run-2", CreatedAt: created, UpdatedAt: created}), model.ErrExists)

		got, err := s.GetRecord(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "run-1", got.RunID)
		assert.False(t, got.Ready)
		assert.NotNil(t, got.Pathways)
		assert.Empty(t, got.Pathways)
		assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)

		// Times come from the caller, even when far from the store's own clock.
		appended := created.Add(6 * time.Hour)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.AppendPathway(ctx, key, "run-1", result(fmt.Sprintf("r%d", i)), appended))
		}
		require.ErrorIs(t, s.AppendPathway(ctx, key, "run-2", result("stale"), appended), model.ErrNotFound)
		require.ErrorIs(t, s.SetReady(ctx, key, "run-2", appended), model.ErrNotFound)

		got, err = s.GetRecord(ctx, key)
		require.NoError(t, err)
		require.Len(t, got.Pathways, 3)
		for i, p := range got.Pathways {
			assert.Equal(t, fmt.Sprintf("r%d", i), p.Reactions[0].ID)
			assert.JSONEq(t, `{"id":"pathway"}`, string(p.Model))
		}
		assert.WithinDuration(t, appended, got.UpdatedAt, time.Millisecond, "append sets updated")
		assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)
		assert.False(t, got.Ready)

		readyAt := appended.Add(time.Minute)
		require.NoError(t, s.SetReady(ctx, key, "run-1", readyAt))
		got, err = s.GetRecord(ctx, key)
		require.NoError(t, err)
		assert.True(t, got.Ready)
		assert.WithinDuration(t, readyAt, got.UpdatedAt, time.Millisecond)

		require.NoError(t, s.DeleteRecord(ctx, key, "run-2"))
		_, err = s.GetRecord(ctx, key)
		require.NoError(t, err, "delete with another run id is a no-op")

		require.NoError(t, s.DeleteRecord(ctx, key, "run-1"))
		_, err = s.GetRecord(ctx, key)
		require.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, s.CreateRecord(ctx, model.JobRecord{Key: key, RunID: "run-3", CreatedAt: created, UpdatedAt: created}))
		require.NoError(t, s.DeleteRecord(ctx, key, ""))
		_, err = s.GetRecord(ctx, key)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		other := key
		other.ProductID = prefix + "concurrent"
		now := time.Now().UTC()
		require.NoError(t, s.CreateRecord(ctx, model.JobRecord{Key: other, RunID: "run", CreatedAt: now, UpdatedAt: now}))

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.AppendPathway(ctx, other, "run", result(fmt.Sprintf("c%d", i)), now))
			}(i)
		}
		wg.Wait()

		got, err := s.GetRecord(ctx, other)
		require.NoError(t, err)
		assert.Len(t, got.Pathways, 16)
		require.NoError(t, s.DeleteRecord(ctx, other, ""))
	})
}

func seedReferences(t *testing.T, s Store, prefix, universal string) {
	ctx := context.Background()
	require.NoError(t, s.UpsertReferences(ctx, model.KindUniversalModel, []model.ReferenceItem{
		{ID: universal, Name: universal},
		{ID: prefix + "other_universal", Name: "other"},
	}))
	require.NoError(t, s.UpsertReferences(ctx, model.KindModel, []model.ReferenceItem{
		{ID: prefix + "iJO1366", Name: "Escherichia coli"},
	}))
	require.NoError(t, s.UpsertReferences(ctx, model.KindCarbonSource, []model.ReferenceItem{
		{ID: prefix + "EX_glc_lp_e_rp_", Name: "glucose"},
	}))
	require.NoError(t, s.UpsertReferences(ctx, model.KindProduct, []model.ReferenceItem{
		{ID: prefix + "vanillin", Name: "placeholder", UniversalModels: []string{universal}},
		{ID: prefix + "ethanol", Name: "ethanol", UniversalModels: []string{prefix + "other_universal"}},
	}))
	// A second upsert replaces the first.
	require.NoError(t, s.UpsertReferences(ctx, model.KindProduct, []model.ReferenceItem{
		{ID: prefix + "vanillin", Name: "vanillin", UniversalModels: []string{universal}},
	}))
}

func result(reactionID string) model.PathwayResult {
	return model.PathwayResult{
		Reactions:    []model.ReactionSummary{{ID: reactionID, Name: reactionID, ReactionString: "A --> B"}},
		Model:        json.RawMessage(`{"id": "pathway"}`),
		PrimaryNodes: []model.Metabolite{{ID: "B", Name: "B"}},
	}
}

func referenceIDs(items []model.ReferenceItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func filterPrefix(items []model.ReferenceItem, prefix string) []model.ReferenceItem {
	var out []model.ReferenceItem
	for _, item := range items {
		if len(item.ID) >= len(prefix) && item.ID[:len(prefix)] == prefix {
			out = append(out, item)
		}
	}
	return out
}
