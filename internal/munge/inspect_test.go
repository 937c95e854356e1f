package munge

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"example.com/l2munger/internal/archive2"
)

func TestInspect(t *testing.T) {
	in := archiveOf(radialPacket(10), genericPacket(20, 100), genericPacket(30, 0))
	s, err := Inspect(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if s.Err != nil {
		t.Fatalf("unexpected tail error %v", s.Err)
	}
	if s.Site != "KGRR" || s.Filename != "AR2V0006.001" || s.Packets != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.ByType[1] != 1 || s.ByType[31] != 2 {
		t.Fatalf("type counts %v", s.ByType)
	}
	base := time.Date(2013, 5, 7, 21, 45, 0, 0, time.UTC)
	if !s.Volume.Equal(base) || !s.FirstPacket.Equal(base.Add(10*time.Second)) || !s.LastPacket.Equal(base.Add(30*time.Second)) {
		t.Fatalf("times volume %s first %s last %s", s.Volume, s.FirstPacket, s.LastPacket)
	}
	if s.Bytes != int64(len(in)) {
		t.Fatalf("bytes %d, want %d", s.Bytes, len(in))
	}
}

func TestInspectIgnoresUnsetPacketTime(t *testing.T) {
	padding := append(packetHeader(0, 1208, 0, 0), make([]byte, archive2.LegacyRecordSize-archive2.PacketHeaderSize)...)
	s, err := Inspect(bytes.NewReader(archiveOf(radialPacket(10), padding)))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	first := time.Date(2013, 5, 7, 21, 45, 10, 0, time.UTC)
	if s.Packets != 2 || s.ByType[0] != 1 || !s.FirstPacket.Equal(first) || !s.LastPacket.Equal(first) {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestInspectTruncated(t *testing.T) {
	in := archiveOf(radialPacket(10), radialPacket(20))
	s, err := Inspect(bytes.NewReader(in[:len(in)-1]))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if s.Packets != 1 || !errors.Is(s.Err, ErrTruncatedPacket) {
		t.Fatalf("packets %d err %v", s.Packets, s.Err)
	}
	if _, err := Inspect(bytes.NewReader(in[:5])); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}
