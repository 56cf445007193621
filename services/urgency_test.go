package services

import (
	"testing"
	"time"
)

func TestUrgencyTier(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresIn time.Duration
		want      string
	}{
		{"one hour left", time.Hour, UrgencyCritical},
		{"exactly two hours", 2 * time.Hour, UrgencyCritical},
		{"three hours left", 3 * time.Hour, UrgencyHigh},
		{"exactly six hours", 6 * time.Hour, UrgencyHigh},
		{"twelve hours left", 12 * time.Hour, UrgencyMedium},
		{"exactly twenty four hours", 24 * time.Hour, UrgencyMedium},
		{"two days left", 48 * time.Hour, UrgencyLow},
		{"a week left", 7 * 24 * time.Hour, UrgencyLow},
		{"already expired", -time.Hour, UrgencyCritical},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := UrgencyTier(now.Add(c.expiresIn), now)
			if got != c.want {
				t.Errorf("UrgencyTier(+%v) = %q, want %q", c.expiresIn, got, c.want)
			}
		})
	}
}
