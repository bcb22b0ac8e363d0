package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobRecordStalled(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute

	tests := []struct {
		name   string
		record JobRecord
		want   bool
	}{
		{"fresh", JobRecord{UpdatedAt: now.Add(-time.Minute)}, false},
		{"exactly at timeout", JobRecord{UpdatedAt: now.Add(-timeout)}, true},
		{"old", JobRecord{UpdatedAt: now.Add(-2 * time.Hour)}, true},
		{"ready records never stall", JobRecord{Ready: true, UpdatedAt: now.Add(-2 * time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Stalled(now, timeout))
		})
	}
}

func TestJobKeyComplete(t *testing.T) {
	key := JobKey{ModelID: "iJO1366", UniversalModelID: "u", CarbonSourceID: "glc", ProductID: "vanillin"}
	assert.True(t, key.Complete())
	key.CarbonSourceID = ""
	assert.False(t, key.Complete())
}

func TestReactionCoefficient(t *testing.T) {
	r := Reaction{ID: "r1", Metabolites: []Participant{
		{Metabolite: Metabolite{ID: "a"}, Coefficient: -1},
		{Metabolite: Metabolite{ID: "b"}, Coefficient: 2},
	}}
	coef, ok := r.Coefficient("b")
	assert.True(t, ok)
	assert.Equal(t, 2.0, coef)
	_, ok = r.Coefficient("zzz")
	assert.False(t, ok)
}
