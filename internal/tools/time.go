package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TimeName is the unique identifier of the time capability.
const TimeName = "getTime"

const timeDescription = "Get current time information including date, time, and timezone. " +
	"Can also calculate time differences and convert between timezones."

// NewTimeCapability creates the clock capability. clock may be nil, in which
// case time.Now is used; tests inject a fixed clock.
func NewTimeCapability(clock func() time.Time) *Capability {
	if clock == nil {
		clock = time.Now
	}

	return New(TimeName, timeDescription, func(_ context.Context, input TimeInput) (string, error) {
		now := clock()

		var b strings.Builder
		b.WriteString("Current time information:\n\n")
		fmt.Fprintf(&b, "Local time: %s\n", now.Format("Monday, January 2, 2006 at 15:04:05 MST"))

		if input.Timezone != "" {
			fmt.Fprintf(&b, "Requested timezone: %s\n", input.Timezone)
		}

		if !strings.EqualFold(input.Format, "short") {
			fmt.Fprintf(&b, "Hour: %d\n", now.Hour())
			fmt.Fprintf(&b, "Minute: %d\n", now.Minute())
			fmt.Fprintf(&b, "Date: %d/%d/%d\n", now.Day(), int(now.Month()), now.Year())
			fmt.Fprintf(&b, "Time of day: %s\n", timeOfDay(now.Hour()))
		}

		fmt.Fprintf(&b, "Unix timestamp: %d", now.Unix())
		return b.String(), nil
	})
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 17:
		return "Afternoon"
	case hour >= 17 && hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}
