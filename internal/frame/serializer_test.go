package frame_test

import (
	"testing"

	"github.com/canlogger/canlogger/internal/frame"
)

func TestFormatLineSingleFrameCorrectness(t *testing.T) {
	f := frame.Frame{
		TimestampUS: 12_345_678_901,
		BusID:       0,
		ID:          0x123,
		Extended:    false,
		DLC:         8,
		Data:        [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
	}
	got := string(frame.FormatLine(f))
	want := "12345.678901 1R11 00000123 11 22 33 44 55 66 77 88\n"
	if got != want {
		t.Fatalf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLineHeader(t *testing.T) {
	got := string(frame.HeaderLine(0))
	want := "# SavvyCAN ASCII log - bus 1\n"
	if got != want {
		t.Fatalf("HeaderLine() = %q, want %q", got, want)
	}
}

func TestFormatLineMissingBytesAreZero(t *testing.T) {
	f := frame.Frame{ID: 0x1, DLC: 2, Data: [8]byte{0xAA, 0xBB}}
	got := string(frame.FormatLine(f))
	want := "0.000000 1R11 00000001 AA BB 00 00 00 00 00 00\n"
	if got != want {
		t.Fatalf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLineExtendedID(t *testing.T) {
	f := frame.Frame{ID: 0x1FFFFFFF, Extended: true, DLC: 0}
	got := string(frame.FormatLine(f))
	want := "0.000000 1R29 1FFFFFFF 00 00 00 00 00 00 00 00\n"
	if got != want {
		t.Fatalf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLineMasksOversizedID(t *testing.T) {
	// An 11-bit frame with an ID that has high bits set must be masked to 11 bits.
	f := frame.Frame{ID: 0xFFFFFFFF, Extended: false}
	got := string(frame.FormatLine(f))
	if got[14:22] != "000007FF" {
		t.Fatalf("FormatLine() id field = %q, want masked to 11 bits (000007FF)", got[14:22])
	}
}

func TestFormatLineBounded(t *testing.T) {
	f := frame.Frame{ID: 0x1FFFFFFF, Extended: true, DLC: 8, Data: [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
	line := frame.FormatLine(f)
	if len(line) > frame.MaxLineLen {
		t.Fatalf("len(line) = %d, want <= %d", len(line), frame.MaxLineLen)
	}
}
