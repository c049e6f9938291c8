package factory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/dex"
	"reserveScope/internal/model"
)

var ErrUnsupportedKind = errors.New("unsupported factory kind")

// Factory is a deployer contract whose creation events spawn venues.
type Factory struct {
	Address       common.Address `json:"address"`
	Kind          dex.Kind       `json:"kind"`
	CreationBlock uint64         `json:"creation_block"`
	FeeBps        uint32         `json:"fee_bps"`
}

// CreationEventSignature returns the topic of the event announcing a new venue.
func (f Factory) CreationEventSignature() (common.Hash, error) {
	switch f.Kind {
	case dex.KindConstantProduct:
		return dex.PairCreatedEventSignature, nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, f.Kind)
	}
}

// NewVenue decodes a creation log into an empty venue carrying the factory fee.
func (f Factory) NewVenue(log model.EventLog) (dex.Venue, error) {
	switch f.Kind {
	case dex.KindConstantProduct:
		created, err := dex.DecodePairCreated(log)
		if err != nil {
			return nil, err
		}
		return dex.NewConstantProductPool(created.Pair, created.Token0, created.Token1, f.FeeBps), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, f.Kind)
	}
}

// Registry indexes factories by address.
type Registry struct {
	factories map[common.Address]Factory
}

func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{factories: make(map[common.Address]Factory, len(factories))}
	for _, f := range factories {
		r.Add(f)
	}
	return r
}

// Add registers f, replacing any factory at the same address.
func (r *Registry) Add(f Factory) {
	r.factories[f.Address] = f
}

func (r *Registry) Get(address common.Address) (Factory, bool) {
	f, ok := r.factories[address]
	return f, ok
}

func (r *Registry) Len() int {
	return len(r.factories)
}

// Factories returns all factories ordered by address.
func (r *Registry) Factories() []Factory {
	out := make([]Factory, 0, len(r.factories))
	for _, f := range r.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Cmp(out[j].Address) < 0 })
	return out
}

// EarliestCreationBlock returns the lowest creation block, or false when empty.
func (r *Registry) EarliestCreationBlock() (uint64, bool) {
	var (
		min   uint64
		found bool
	)
	for _, f := range r.factories {
		if !found || f.CreationBlock < min {
			min, found = f.CreationBlock, true
		}
	}
	return min, found
}

// CreationEventFilter returns the factory addresses and the deduplicated
// creation-event topics to query.
func (r *Registry) CreationEventFilter() ([]common.Address, []common.Hash, error) {
	factories := r.Factories()
	addresses := make([]common.Address, 0, len(factories))
	seen := make(map[common.Hash]struct{})
	var topics []common.Hash
	for _, f := range factories {
		sig, err := f.CreationEventSignature()
		if err != nil {
			return nil, nil, fmt.Errorf("factory %s: %w", f.Address.Hex(), err)
		}
		addresses = append(addresses, f.Address)
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		topics = append(topics, sig)
	}
	return addresses, topics, nil
}
