package predictor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/metabolic-ninja/api-go/internal/blob"
	"github.com/example/metabolic-ninja/api-go/internal/model"
)

func writeRecordings(t *testing.T, blobs blob.LocalFS, pair ModelPair, product string, n int) {
	t.Helper()
	pathways := make([]model.RawPathway, n)
	for i := range pathways {
		pathways[i] = model.RawPathway{Reactions: []model.Reaction{{ID: string(rune('a' + i)), Name: "r"}}}
	}
	data, err := json.Marshal(pathways)
	require.NoError(t, err)
	_, err = blobs.Put(RecordingPath(pair, product), strings.NewReader(string(data)))
	require.NoError(t, err)
}

func TestReplay(t *testing.T) {
	blobs := blob.LocalFS{Root: t.TempDir()}
	pair := ModelPair{ModelID: "iJO1366", UniversalModelID: "u"}
	writeRecordings(t, blobs, pair, "vanillin", 3)

	p, err := ReplayFactory(blobs, 0)(context.Background(), pair)
	require.NoError(t, err)

	var ids []string
	collect := func(rp model.RawPathway) error {
		ids = append(ids, rp.Reactions[0].ID)
		return nil
	}
	require.NoError(t, p.Predict(context.Background(), "vanillin", 10, collect))
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids = nil
	require.NoError(t, p.Predict(context.Background(), "vanillin", 2, collect))
	assert.Equal(t, []string{"a", "b"}, ids)

	err = p.Predict(context.Background(), "ethanol", 2, collect)
	assert.Error(t, err)
}

func TestReplayUnknownPair(t *testing.T) {
	blobs := blob.LocalFS{Root: t.TempDir()}
	_, err := ReplayFactory(blobs, 0)(context.Background(), ModelPair{ModelID: "m", UniversalModelID: "u"})
	assert.ErrorContains(t, err, "no recorded predictions")

	_, err = ReplayFactory(blobs, 0)(context.Background(), ModelPair{ModelID: "..", UniversalModelID: ".."})
	assert.Error(t, err)
}

func TestReplayHonoursCancellation(t *testing.T) {
	blobs := blob.LocalFS{Root: t.TempDir()}
	pair := ModelPair{ModelID: "m", UniversalModelID: "u"}
	writeRecordings(t, blobs, pair, "p", 2)

	p, err := ReplayFactory(blobs, time.Hour)(context.Background(), pair)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = p.Predict(ctx, "p", 2, func(model.RawPathway) error {
		t.Fatal("no pathway expected before the delay elapses")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
