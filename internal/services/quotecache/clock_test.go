package quotecache

import (
	"testing"
	"time"
)

func TestIsTradingHours(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected bool
	}{
		{
			"before open",
			time.Date(2026, 3, 11, 9, 59, 0, 0, saoPauloLocation), // Wed 09:59
			false,
		},
		{
			"at open",
			time.Date(2026, 3, 11, 10, 0, 0, 0, saoPauloLocation), // Wed 10:00
			true,
		},
		{
			"midday",
			time.Date(2026, 3, 11, 14, 0, 0, 0, saoPauloLocation), // Wed 14:00
			true,
		},
		{
			"last minute of session",
			time.Date(2026, 3, 11, 17, 59, 0, 0, saoPauloLocation), // Wed 17:59
			true,
		},
		{
			"at close",
			time.Date(2026, 3, 11, 18, 0, 0, 0, saoPauloLocation), // Wed 18:00, window is half-open
			false,
		},
		{
			"evening",
			time.Date(2026, 3, 11, 20, 0, 0, 0, saoPauloLocation), // Wed 20:00
			false,
		},
		{
			"saturday midday",
			time.Date(2026, 3, 14, 12, 0, 0, 0, saoPauloLocation), // Sat 12:00
			false,
		},
		{
			"sunday midday",
			time.Date(2026, 3, 15, 12, 0, 0, 0, saoPauloLocation), // Sun 12:00
			false,
		},
		{
			"monday open",
			time.Date(2026, 3, 16, 10, 30, 0, 0, saoPauloLocation), // Mon 10:30
			true,
		},
		{
			"friday open",
			time.Date(2026, 3, 13, 16, 0, 0, 0, saoPauloLocation), // Fri 16:00
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTradingHours(tt.time); got != tt.expected {
				t.Errorf("IsTradingHours(%v) = %v, want %v", tt.time, got, tt.expected)
			}
		})
	}
}

func TestIsTradingHoursConvertsZone(t *testing.T) {
	// Wed 16:00 UTC = Wed 13:00 in São Paulo, inside the session
	utc := time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC)
	if !IsTradingHours(utc) {
		t.Error("16:00 UTC on a Wednesday should be inside the São Paulo session")
	}

	// Wed 22:00 UTC = Wed 19:00 in São Paulo, after close
	evening := time.Date(2026, 3, 11, 22, 0, 0, 0, time.UTC)
	if IsTradingHours(evening) {
		t.Error("22:00 UTC should be outside the São Paulo session")
	}
}
