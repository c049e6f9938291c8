package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventLog is a contract log as seen by the sync engine. Block number and
// log index are nil for logs that are not yet mined.
type EventLog struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber *uint64
	LogIndex    *uint64
}

// FromTypesLog converts a go-ethereum log.
func FromTypesLog(l types.Log) EventLog {
	block := l.BlockNumber
	index := uint64(l.Index)
	return EventLog{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: &block,
		LogIndex:    &index,
	}
}

// Signature returns topic 0, or the zero hash for anonymous logs.
func (l EventLog) Signature() common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// Cursor returns the log's stream position.
func (l EventLog) Cursor() (Cursor, error) {
	if l.BlockNumber == nil {
		return Cursor{}, ErrMissingBlockNumber
	}
	if l.LogIndex == nil {
		return Cursor{}, ErrMissingLogIndex
	}
	return Cursor{BlockNumber: *l.BlockNumber, LogIndex: *l.LogIndex}, nil
}
