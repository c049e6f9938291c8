package model

import (
	"fmt"
	"math"
)

// Cursor is a position in the event-log stream, ordered by block then log index.
type Cursor struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// EndOfBlock sorts after every log in the block.
func EndOfBlock(block uint64) Cursor {
	return Cursor{BlockNumber: block, LogIndex: math.MaxUint64}
}

// Compare returns -1, 0 or 1.
func (c Cursor) Compare(other Cursor) int {
	switch {
	case c.BlockNumber < other.BlockNumber:
		return -1
	case c.BlockNumber > other.BlockNumber:
		return 1
	case c.LogIndex < other.LogIndex:
		return -1
	case c.LogIndex > other.LogIndex:
		return 1
	default:
		return 0
	}
}

func (c Cursor) Less(other Cursor) bool {
	return c.Compare(other) < 0
}

func (c Cursor) IsZero() bool {
	return c.BlockNumber == 0 && c.LogIndex == 0
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d:%d", c.BlockNumber, c.LogIndex)
}
