// Package frame formats CAN frames into the space-separated ASCII line format
// this logger persists: "<sec>.<usec_6> <bus+1>R<11|29> <id_hex_8> <b0_hex>
// … <b7_hex>\n". Ported line-for-line from format_savvy_line in
// original_source/src/logging/log_writer.cpp.
package frame

import "fmt"

// MaxLineLen bounds a serialized line. A line is 47 bytes with a one-digit
// seconds field and one byte longer per extra seconds digit; this
// cap is generous headroom, never a truncation point (lines are never split).
const MaxLineLen = 96

// Frame is the ingest-side record: a monotonic microsecond timestamp, the
// zero-based bus index, an 11- or 29-bit CAN identifier, and up to 8 payload
// bytes. Frames are never stored as records — they are serialized
// immediately and only the resulting bytes are buffered.
type Frame struct {
	TimestampUS int64
	BusID       uint8 // zero-based
	ID          uint32
	Extended    bool
	DLC         uint8
	Data        [8]byte
}

// FormatLine renders f as a single terminated ASCII line. Missing payload
// bytes below 8 are emitted as "00". 11-bit IDs are masked to 11 bits, 29-bit
// IDs to 29 bits, regardless of what the caller passed in ID.
func FormatLine(f Frame) []byte {
	sec := f.TimestampUS / 1_000_000
	usec := f.TimestampUS % 1_000_000

	width := "11"
	mask := uint32(0x7FF)
	if f.Extended {
		width = "29"
		mask = 0x1FFFFFFF
	}
	id := f.ID & mask

	out := make([]byte, 0, MaxLineLen)
	out = append(out, fmt.Sprintf("%d.%06d %dR%s %08X", sec, usec, f.BusID+1, width, id)...)
	for i := 0; i < 8; i++ {
		var b byte
		if uint8(i) < f.DLC && i < len(f.Data) {
			b = f.Data[i]
		}
		out = append(out, fmt.Sprintf(" %02X", b)...)
	}
	out = append(out, '\n')
	return out
}

// HeaderLine returns the per-file header line written once before any frame
// lines, matching write_header in the C++ reference.
func HeaderLine(busID uint8) []byte {
	return []byte(fmt.Sprintf("# SavvyCAN ASCII log - bus %d\n", busID+1))
}
