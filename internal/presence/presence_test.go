package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}

	tests := []struct {
		name     string
		lastSeen *time.Time
		want     Status
	}{
		{"never seen", nil, StatusOffline},
		{"just now", at(0), StatusOnline},
		{"59s ago", at(59 * time.Second), StatusOnline},
		{"60s ago", at(60 * time.Second), StatusAway},
		{"599s ago", at(599 * time.Second), StatusAway},
		{"600s ago", at(600 * time.Second), StatusOffline},
		{"days ago", at(72 * time.Hour), StatusOffline},
		{"clock skew, in the future", at(-time.Minute), StatusOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.lastSeen, now))
		})
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, ParseStatus("online"))
	assert.Equal(t, StatusAway, ParseStatus("away"))
	assert.Equal(t, StatusOffline, ParseStatus("offline"))
	assert.Equal(t, StatusOffline, ParseStatus("busy"))
	assert.Equal(t, StatusOffline, ParseStatus(""))
}
