package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDateConfidence(t *testing.T) {
	cfg := DefaultConfig() // window 3, edge 0.7

	tests := []struct {
		name string
		days float64
		want float64
	}{
		{"same day", 0, 1.0},
		{"one day", 1, 0.9},
		{"two days", 2, 0.8},
		{"window edge", 3, 0.7},
		{"beyond window", 4, 0},
		{"negative distance is absolute", -1, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cfg.DateConfidence(tt.days), 1e-9)
		})
	}
}

func TestDateConfidenceZeroWindow(t *testing.T) {
	cfg := Config{DateWindowDays: 0, DateEdgeConfidence: 0.7}
	assert.Equal(t, 0.0, cfg.DateConfidence(1))
}
