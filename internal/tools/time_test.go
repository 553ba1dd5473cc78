package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTimeCapability(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	c := NewTimeCapability(fixedClock(at))

	got, err := c.Call(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	for _, want := range []string{
		"Current time information:",
		"Hour: 9",
		"Minute: 26",
		"Date: 14/3/2026",
		"Time of day: Morning",
		fmt.Sprintf("Unix timestamp: %d", at.Unix()),
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Requested timezone") {
		t.Error("timezone line should only appear when requested")
	}
}

func TestTimeCapability_TimezoneEcho(t *testing.T) {
	c := NewTimeCapability(fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))

	got, err := c.Call(context.Background(), map[string]any{"timezone": "Asia/Tokyo"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(got, "Requested timezone: Asia/Tokyo") {
		t.Errorf("output missing timezone echo:\n%s", got)
	}
}

func TestTimeCapability_ShortFormat(t *testing.T) {
	c := NewTimeCapability(fixedClock(time.Date(2026, 1, 1, 23, 5, 0, 0, time.UTC)))

	got, err := c.Call(context.Background(), map[string]any{"format": "short"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if strings.Contains(got, "Hour:") || strings.Contains(got, "Time of day:") {
		t.Errorf("short format should omit the detail block:\n%s", got)
	}
	if !strings.Contains(got, "Unix timestamp:") {
		t.Errorf("short format should still include the timestamp:\n%s", got)
	}
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{5, "Morning"},
		{11, "Morning"},
		{12, "Afternoon"},
		{16, "Afternoon"},
		{17, "Evening"},
		{20, "Evening"},
		{21, "Night"},
		{3, "Night"},
	}
	for _, tt := range tests {
		if got := timeOfDay(tt.hour); got != tt.want {
			t.Errorf("timeOfDay(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}
