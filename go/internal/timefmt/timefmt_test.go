package timefmt

import (
	"testing"
	"time"
)

func TestMMSS(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{330 * time.Second, "05:30"},
		{59001 * time.Millisecond, "01:00"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		if got := MMSS(tt.in); got != tt.want {
			t.Fatalf("MMSS(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "00:05"},
		{4100 * time.Millisecond, "00:05"},
		{1 * time.Millisecond, "00:01"},
		{0, "00:00"},
		{15 * time.Second, "00:15"},
	}
	for _, tt := range tests {
		if got := Countdown(tt.in); got != tt.want {
			t.Fatalf("Countdown(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHuman(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30 sec"},
		{5 * time.Minute, "5 min"},
		{330 * time.Second, "5 min 30 sec"},
		{1500 * time.Millisecond, "1 sec"},
	}
	for _, tt := range tests {
		if got := Human(tt.in); got != tt.want {
			t.Fatalf("Human(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
