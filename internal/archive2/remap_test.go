package archive2

import (
	"errors"
	"testing"
)

const (
	eventStart    = int64(1_367_963_100) // 2013-05-07 21:45:00 UTC
	playbackStart = int64(1_717_246_311) // 2024-06-01 12:51:51 UTC
)

func TestNewRemapperRejectsSpeed(t *testing.T) {
	for _, speed := range []int{0, -1, -4} {
		if _, err := NewRemapper(eventStart, playbackStart, speed); !errors.Is(err, ErrInvalidSpeedFactor) {
			t.Fatalf("speed %d: expected ErrInvalidSpeedFactor, got %v", speed, err)
		}
	}
}

func TestRemapIdentitySpeed(t *testing.T) {
	r, err := NewRemapper(eventStart, playbackStart, 1)
	if err != nil {
		t.Fatalf("NewRemapper: %v", err)
	}
	offset := playbackStart - eventStart
	if r.Offset() != offset {
		t.Fatalf("Offset() = %d, want %d", r.Offset(), offset)
	}
	for _, ts := range []int64{eventStart - 3600, eventStart - 1, eventStart, eventStart + 1, eventStart + 299, eventStart + 86_400} {
		if got := r.Remap(ts); got != ts+offset {
			t.Fatalf("Remap(%d) = %d, want %d", ts, got, ts+offset)
		}
	}
}

func TestRemapReferenceFixpoint(t *testing.T) {
	for _, speed := range []int{1, 2, 3, 7, 60} {
		r, err := NewRemapper(eventStart, playbackStart, speed)
		if err != nil {
			t.Fatalf("NewRemapper: %v", err)
		}
		if got := r.Remap(eventStart); got != playbackStart {
			t.Fatalf("speed %d: Remap(reference) = %d, want %d", speed, got, playbackStart)
		}
		if r.Target() != playbackStart {
			t.Fatalf("speed %d: Target() = %d, want %d", speed, r.Target(), playbackStart)
		}
	}
}

func TestRemapDilation(t *testing.T) {
	tests := []struct {
		name  string
		speed int
		delta int64
		want  int64
	}{
		{name: "double speed", speed: 2, delta: 300, want: 150},
		{name: "double speed odd", speed: 2, delta: 301, want: 150},
		{name: "triple speed", speed: 3, delta: 100, want: 33},
		{name: "before reference truncates toward zero", speed: 2, delta: -3, want: -1},
		{name: "before reference exact", speed: 4, delta: -8, want: -2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRemapper(eventStart, playbackStart, tc.speed)
			if err != nil {
				t.Fatalf("NewRemapper: %v", err)
			}
			if got := r.Remap(eventStart + tc.delta); got != playbackStart+tc.want {
				t.Fatalf("Remap(ref%+d) = ref'%+d, want ref'%+d", tc.delta, got-playbackStart, tc.want)
			}
		})
	}
}

func TestRemapArchiveTime(t *testing.T) {
	r, err := NewRemapper(eventStart, playbackStart, 2)
	if err != nil {
		t.Fatalf("NewRemapper: %v", err)
	}
	in, err := EncodeArchiveTime(eventStart + 120)
	if err != nil {
		t.Fatalf("EncodeArchiveTime: %v", err)
	}
	in.Millis += 750
	out, err := r.RemapArchiveTime(in)
	if err != nil {
		t.Fatalf("RemapArchiveTime: %v", err)
	}
	if got := out.Unix(); got != playbackStart+60 {
		t.Fatalf("remapped = %d, want %d", got, playbackStart+60)
	}
	if out.Millis%1000 != 0 {
		t.Fatalf("sub-second precision retained: %d", out.Millis)
	}

	back, err := NewRemapper(playbackStart, 10, 1)
	if err != nil {
		t.Fatalf("NewRemapper: %v", err)
	}
	early, _ := EncodeArchiveTime(playbackStart - 60)
	if _, err := back.RemapArchiveTime(early); !errors.Is(err, ErrTimeOutOfRange) {
		t.Fatalf("expected ErrTimeOutOfRange, got %v", err)
	}
}
