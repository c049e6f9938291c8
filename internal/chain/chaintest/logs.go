package chaintest

import (
	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/model"
)

// Log builds a mined log at (block, index).
func Log(address common.Address, block, index uint64, data []byte, topics ...common.Hash) model.EventLog {
	b, i := block, index
	return model.EventLog{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: &b,
		LogIndex:    &i,
	}
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
