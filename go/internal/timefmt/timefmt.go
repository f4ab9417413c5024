// Package timefmt renders countdowns and durations for display.
package timefmt

import (
	"fmt"
	"time"
)

// ceilSeconds rounds d up to whole seconds, so a countdown shows 1 until it
// reaches zero.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// MMSS formats d as "mm:ss", e.g. "05:30".
func MMSS(d time.Duration) string {
	s := ceilSeconds(d)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Countdown formats the seconds left in a phase, e.g. "00:05".
func Countdown(d time.Duration) string {
	return fmt.Sprintf("00:%02d", ceilSeconds(d))
}

// CountdownSeconds returns the whole seconds a countdown would display.
func CountdownSeconds(d time.Duration) int {
	return ceilSeconds(d)
}

// Human formats a duration truncated to seconds as "5 min 30 sec",
// "5 min" or "30 sec".
func Human(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	mins, secs := total/60, total%60

	switch {
	case mins == 0:
		return fmt.Sprintf("%d sec", secs)
	case secs == 0:
		return fmt.Sprintf("%d min", mins)
	}
	return fmt.Sprintf("%d min %d sec", mins, secs)
}
