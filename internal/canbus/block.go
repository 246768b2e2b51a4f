// Package canbus implements the per-bus block buffer (C5) that decouples
// ISR-driven ingest from the storage-writer consumer, and the CAN ingest
// stage (C6) that drives it. The buffer's critical section is sized and
// guarded to hold a short mutex across one line's worth of memcpy, never
// across I/O.
package canbus

import "sync"

// BlockState is one of the four states a Block cycles through.
type BlockState uint8

const (
	StateFree BlockState = iota
	StateRxActive
	StateReady
	StateInFlight
)

// DefaultBlockSize is the per-block capacity (8192 bytes).
const DefaultBlockSize = 8192

// NumBlocks is the block count per bus — exactly two, for double buffering.
const NumBlocks = 2

// Block is a fixed-size byte buffer plus its lifecycle state.
type Block struct {
	Buf   []byte
	Len   int
	Frames int
	State BlockState
}

// BlockBuffer is the two-block handoff structure owned by one bus. All state
// transitions happen under mu; the critical section includes the payload
// copy because it is bounded (at most one line, ≤96 bytes).
type BlockBuffer struct {
	mu           sync.Mutex
	blocks       [NumBlocks]Block
	active       int // index of the current RxActive block, or -1
	drops        uint64
	highWater    int
	blockSize    int
}

// NewBlockBuffer allocates a buffer with blockSize-byte blocks (DefaultBlockSize if 0).
func NewBlockBuffer(blockSize int) *BlockBuffer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	b := &BlockBuffer{active: -1, blockSize: blockSize}
	for i := range b.blocks {
		b.blocks[i].Buf = make([]byte, blockSize)
		b.blocks[i].State = StateFree
	}
	return b
}

// Produce appends line (a single serialized frame, never split across
// blocks) to the current RxActive block, selecting a Free block if needed.
// Returns false (dropped) if no block has room and none is Free.
func (b *BlockBuffer) Produce(line []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active < 0 || b.blocks[b.active].Len+len(line) > b.blockSize {
		// Current active block (if any) is full: mark Ready and rotate.
		if b.active >= 0 {
			b.blocks[b.active].State = StateReady
			b.active = -1
		}
		idx := b.findFree()
		if idx < 0 {
			b.drops++
			return false
		}
		b.blocks[idx].State = StateRxActive
		b.active = idx
	}

	blk := &b.blocks[b.active]
	blk.Buf = append(blk.Buf[:blk.Len], line...)
	blk.Len += len(line)
	blk.Frames++

	if sum := b.sumLenLocked(); sum > b.highWater {
		b.highWater = sum
	}

	// Within one line's length of capacity: mark Ready now so the next
	// Produce rotates rather than risking a split write.
	if blk.Len+DefaultLineMargin() > b.blockSize {
		blk.State = StateReady
		b.active = -1
	}
	return true
}

// DefaultLineMargin is the bound used to decide "within one line length of
// capacity" — the maximum serialized line length (see internal/frame).
func DefaultLineMargin() int { return 96 }

func (b *BlockBuffer) findFree() int {
	for i := range b.blocks {
		if b.blocks[i].State == StateFree {
			return i
		}
	}
	return -1
}

func (b *BlockBuffer) sumLenLocked() int {
	sum := 0
	for i := range b.blocks {
		sum += b.blocks[i].Len
	}
	return sum
}

// AcquireReady transitions the first Ready block to InFlight and returns a
// snapshot of its bytes, length and frame count, plus the block index needed
// by Release. ok is false if no block is Ready.
func (b *BlockBuffer) AcquireReady() (idx int, data []byte, frames int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.blocks {
		if b.blocks[i].State == StateReady {
			b.blocks[i].State = StateInFlight
			out := make([]byte, b.blocks[i].Len)
			copy(out, b.blocks[i].Buf[:b.blocks[i].Len])
			return i, out, b.blocks[i].Frames, true
		}
	}
	return 0, nil, 0, false
}

// Release transitions an InFlight block back to Free, clearing its length
// and frame count. flushedFrames is recorded for observability only.
func (b *BlockBuffer) Release(idx int, flushedFrames int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks[idx].Len = 0
	b.blocks[idx].Frames = 0
	b.blocks[idx].State = StateFree
	_ = flushedFrames
}

// Drops returns the cumulative count of frames dropped for lack of a free block.
func (b *BlockBuffer) Drops() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}

// HighWaterBytes returns the maximum observed sum of block lengths.
func (b *BlockBuffer) HighWaterBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.highWater
}
