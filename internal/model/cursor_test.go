package model

import (
	"errors"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestCursorOrdering(t *testing.T) {
	cursors := []Cursor{
		{BlockNumber: 10, LogIndex: 3},
		{BlockNumber: 9, LogIndex: 100},
		{BlockNumber: 10, LogIndex: 0},
		EndOfBlock(9),
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].Less(cursors[j]) })

	want := []Cursor{
		{BlockNumber: 9, LogIndex: 100},
		EndOfBlock(9),
		{BlockNumber: 10, LogIndex: 0},
		{BlockNumber: 10, LogIndex: 3},
	}
	for i := range want {
		if cursors[i] != want[i] {
			t.Fatalf("order mismatch at %d: %v != %v", i, cursors[i], want[i])
		}
	}
	if (Cursor{BlockNumber: 1}).Compare(Cursor{BlockNumber: 1}) != 0 {
		t.Fatalf("expected equal cursors")
	}
}

func TestEventLogCursor(t *testing.T) {
	log := FromTypesLog(types.Log{
		Address:     common.HexToAddress("0x1"),
		BlockNumber: 42,
		Index:       7,
	})
	cursor, err := log.Cursor()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != (Cursor{BlockNumber: 42, LogIndex: 7}) {
		t.Fatalf("cursor mismatch: %v", cursor)
	}

	log.LogIndex = nil
	if _, err := log.Cursor(); !errors.Is(err, ErrMissingLogIndex) {
		t.Fatalf("expected ErrMissingLogIndex, got %v", err)
	}
	log.BlockNumber = nil
	if _, err := log.Cursor(); !errors.Is(err, ErrMissingBlockNumber) {
		t.Fatalf("expected ErrMissingBlockNumber, got %v", err)
	}
	if log.Signature() != (common.Hash{}) {
		t.Fatalf("expected zero signature for log without topics")
	}
}
