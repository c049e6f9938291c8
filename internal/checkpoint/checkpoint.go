package checkpoint

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/currency"
	"reserveScope/internal/dex"
	"reserveScope/internal/factory"
)

// Checkpoint is the aggregate mirror state: factories, venues, token metadata,
// the token blacklist and the last block covered by discovery.
type Checkpoint struct {
	// BlockNumber is the last block scanned by discovery; nil before the first scan.
	BlockNumber *uint64
	Factories   map[common.Address]factory.Factory
	Venues      map[common.Address]dex.Venue
	Currencies  map[common.Address]currency.Currency
	Blacklist   map[common.Address]struct{}
}

// New returns an empty checkpoint.
func New() *Checkpoint {
	return &Checkpoint{
		Factories:  make(map[common.Address]factory.Factory),
		Venues:     make(map[common.Address]dex.Venue),
		Currencies: make(map[common.Address]currency.Currency),
		Blacklist:  make(map[common.Address]struct{}),
	}
}

// NewFromFactories returns an empty checkpoint tracking factories.
func NewFromFactories(factories ...factory.Factory) *Checkpoint {
	c := New()
	for _, f := range factories {
		c.Factories[f.Address] = f
	}
	return c
}

// Registry builds a factory registry over the checkpoint's factories.
func (c *Checkpoint) Registry() *factory.Registry {
	r := factory.NewRegistry()
	for _, f := range c.Factories {
		r.Add(f)
	}
	return r
}

// Merge folds other into c. The resume height becomes the lower of the two, an
// unset height counting as lowest. On address collisions other's entry wins.
// Venues touching a token blacklisted on either side are dropped.
func (c *Checkpoint) Merge(other *Checkpoint) {
	if other == nil {
		return
	}
	switch {
	case c.BlockNumber == nil:
	case other.BlockNumber == nil:
		c.BlockNumber = nil
	case *other.BlockNumber < *c.BlockNumber:
		height := *other.BlockNumber
		c.BlockNumber = &height
	}

	for addr, f := range other.Factories {
		c.Factories[addr] = f
	}
	for addr, v := range other.Venues {
		c.Venues[addr] = v.Clone()
	}
	for addr, cur := range other.Currencies {
		c.Currencies[addr] = cur
	}
	for addr := range other.Blacklist {
		c.Blacklist[addr] = struct{}{}
	}
	c.BlacklistTokens()
	for _, v := range c.Venues {
		for _, token := range v.Tokens() {
			if cur, ok := c.Currencies[token]; ok {
				v.SetCurrency(cur)
			}
		}
	}
}

// ResumeHeight is the first block discovery has not scanned yet.
func (c *Checkpoint) ResumeHeight() uint64 {
	if c.BlockNumber != nil {
		return *c.BlockNumber + 1
	}
	return c.earliestCreationBlock()
}

// LastSyncedHeight is the highest block any venue has replayed, or the earliest
// factory creation block when nothing has synced.
func (c *Checkpoint) LastSyncedHeight() uint64 {
	var height uint64
	for _, v := range c.Venues {
		if b := v.Cursor().BlockNumber; b > height {
			height = b
		}
	}
	if height == 0 {
		return c.earliestCreationBlock()
	}
	return height
}

// syncStart is the first block the reserve replay should fetch.
func (c *Checkpoint) syncStart() uint64 {
	var height uint64
	for _, v := range c.Venues {
		if b := v.Cursor().BlockNumber; b > height {
			height = b
		}
	}
	if height == 0 {
		return c.earliestCreationBlock()
	}
	return height + 1
}

func (c *Checkpoint) earliestCreationBlock() uint64 {
	height, _ := c.Registry().EarliestCreationBlock()
	return height
}

// AddVenue tracks v unless it is already tracked or touches a blacklisted token.
func (c *Checkpoint) AddVenue(v dex.Venue) bool {
	if _, ok := c.Venues[v.Address()]; ok {
		return false
	}
	for _, token := range v.Tokens() {
		if c.IsBlacklisted(token) {
			return false
		}
	}
	for _, token := range v.Tokens() {
		if cur, ok := c.Currencies[token]; ok {
			v.SetCurrency(cur)
		}
	}
	c.Venues[v.Address()] = v
	return true
}

// RemoveVenue stops tracking the venue at addr.
func (c *Checkpoint) RemoveVenue(addr common.Address) bool {
	if _, ok := c.Venues[addr]; !ok {
		return false
	}
	delete(c.Venues, addr)
	return true
}

func (c *Checkpoint) IsBlacklisted(token common.Address) bool {
	_, ok := c.Blacklist[token]
	return ok
}

// BlacklistTokens records tokens as permanently unresolvable and evicts every
// venue referencing one. It returns the evicted venue addresses.
func (c *Checkpoint) BlacklistTokens(tokens ...common.Address) []common.Address {
	for _, token := range tokens {
		c.Blacklist[token] = struct{}{}
	}
	var evicted []common.Address
	for addr, v := range c.Venues {
		for _, token := range v.Tokens() {
			if c.IsBlacklisted(token) {
				evicted = append(evicted, addr)
				break
			}
		}
	}
	for _, addr := range evicted {
		delete(c.Venues, addr)
	}
	sortAddresses(evicted)
	return evicted
}

// AddCurrency stores cur and attaches it to every venue holding that token.
func (c *Checkpoint) AddCurrency(cur currency.Currency) {
	c.Currencies[cur.Address] = cur
	for _, v := range c.Venues {
		v.SetCurrency(cur)
	}
}

// MissingCurrencies lists venue tokens without metadata that are not blacklisted.
func (c *Checkpoint) MissingCurrencies() []common.Address {
	seen := make(map[common.Address]struct{})
	for _, v := range c.Venues {
		for _, token := range v.Tokens() {
			if _, ok := c.Currencies[token]; ok {
				continue
			}
			if c.IsBlacklisted(token) {
				continue
			}
			seen[token] = struct{}{}
		}
	}
	out := make([]common.Address, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sortAddresses(out)
	return out
}

// PopulatedVenues returns venues with reserves and resolved metadata, ordered by address.
func (c *Checkpoint) PopulatedVenues() []dex.Venue {
	out := make([]dex.Venue, 0, len(c.Venues))
	for _, v := range c.Venues {
		if v.Populated() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address().Cmp(out[j].Address()) < 0 })
	return out
}

func (c *Checkpoint) String() string {
	unsynced := 0
	for _, v := range c.Venues {
		if v.Cursor().BlockNumber == 0 {
			unsynced++
		}
	}
	resume := "none"
	if c.BlockNumber != nil {
		resume = fmt.Sprintf("%d", *c.BlockNumber)
	}
	return fmt.Sprintf(
		"checkpoint{block_number: %s, last_synced: %d, factories: %d, venues: %d, unsynced_venues: %d, currencies: %d, blacklist: %d}",
		resume, c.LastSyncedHeight(), len(c.Factories), len(c.Venues), unsynced, len(c.Currencies), len(c.Blacklist),
	)
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
}
