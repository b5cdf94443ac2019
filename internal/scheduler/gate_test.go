package scheduler

import (
	"testing"
	"time"
)

func TestGateStrictlyGreaterThanInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(5, start)
	if g.Interval() != 200*time.Millisecond {
		t.Fatalf("unexpected interval %v", g.Interval())
	}

	if g.Ready(start.Add(200 * time.Millisecond)) {
		t.Fatal("exactly one interval must not be eligible")
	}
	if !g.Ready(start.Add(201 * time.Millisecond)) {
		t.Fatal("expected eligible after interval")
	}
	if g.Ready(start.Add(300 * time.Millisecond)) {
		t.Fatal("gate must measure from the last save")
	}
}

func TestGateCadenceBounds(t *testing.T) {
	tests := []struct {
		name       string
		captureFPS float64
		saveFPS    float64
		duration   time.Duration
		min, max   int
	}{
		{"half rate", 10, 5, 10 * time.Second, 30, 50},
		{"equal rates", 10, 10, 10 * time.Second, 45, 100},
		{"slow save", 30, 1, 10 * time.Second, 9, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			g := NewGate(tt.saveFPS, start)
			step := time.Duration(float64(time.Second) / tt.captureFPS)
			saves := 0
			for now := start.Add(step); now.Sub(start) <= tt.duration; now = now.Add(step) {
				if g.Ready(now) {
					saves++
				}
			}
			iterations := int(tt.duration / step)
			if saves > iterations {
				t.Fatalf("saves %d exceed iterations %d", saves, iterations)
			}
			if saves < tt.min || saves > tt.max {
				t.Fatalf("saves = %d, want within [%d,%d]", saves, tt.min, tt.max)
			}
		})
	}
}
