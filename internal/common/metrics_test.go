package common

import (
	"testing"
	"time"
)

func TestMetricsSpanSeveralRuns(t *testing.T) {
	m := NewMetrics()
	m.Start()
	first := m.start
	m.AddPacket(31, 100)
	m.Stop()
	firstEnd := m.end

	time.Sleep(2 * time.Millisecond)
	m.Start()
	if !m.end.IsZero() {
		t.Fatalf("Start did not clear the previous end")
	}
	m.AddPacket(1, 2432)
	m.Stop()

	if !m.start.Equal(first) {
		t.Fatalf("start moved from %s to %s", first, m.start)
	}
	if !m.end.After(firstEnd) {
		t.Fatalf("end %s not after first run end %s", m.end, firstEnd)
	}
	snap := m.Snapshot()
	if snap.Duration != m.end.Sub(first) {
		t.Fatalf("duration %s, want %s", snap.Duration, m.end.Sub(first))
	}
	if snap.Packets != 2 || snap.Bytes != 2532 || snap.TypeSummary() != "1:1 31:1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMetricsCompletion(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		total int64
		want  float64
	}{
		{"unknown total", 500, 0, 0},
		{"half", 500, 1000, 0.5},
		{"clamped", 1500, 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := MetricsSnapshot{Bytes: tt.bytes, TotalBytes: tt.total}
			if got := s.Completion(); got != tt.want {
				t.Fatalf("Completion = %v, want %v", got, tt.want)
			}
		})
	}
}
