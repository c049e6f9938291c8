package currency

import (
	"github.com/ethereum/go-ethereum/common"
)

// Currency is resolved ERC20 metadata. An empty Symbol means unresolved.
type Currency struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Unresolved returns a placeholder for a token whose metadata is not known yet.
func Unresolved(address common.Address) Currency {
	return Currency{Address: address}
}

// Resolved reports whether metadata has been filled in.
func (c Currency) Resolved() bool {
	return c.Symbol != ""
}

// Valid reports whether the metadata is usable: non-zero address and non-empty symbol.
func (c Currency) Valid() bool {
	return c.Address != (common.Address{}) && c.Symbol != ""
}
