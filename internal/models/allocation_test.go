package models

import "testing"

func TestParseRiskProfile(t *testing.T) {
	tests := []struct {
		in   string
		want RiskProfile
	}{
		{"conservador", RiskConservador},
		{"moderado", RiskModerado},
		{"arrojado", RiskArrojado},
		{"ARROJADO", RiskArrojado},
		{"  conservador ", RiskConservador},
		{"aggressive", RiskModerado}, // unrecognized falls back
		{"", RiskModerado},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseRiskProfile(tt.in); got != tt.want {
				t.Errorf("ParseRiskProfile(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaxPositionPct(t *testing.T) {
	tests := []struct {
		profile RiskProfile
		want    float64
	}{
		{RiskConservador, 15},
		{RiskModerado, 25},
		{RiskArrojado, 30},
		{RiskProfile("unknown"), 25}, // balanced cap for anything else
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			if got := tt.profile.MaxPositionPct(); got != tt.want {
				t.Errorf("MaxPositionPct() = %.0f, want %.0f", got, tt.want)
			}
		})
	}
}
