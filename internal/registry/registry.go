// Package registry holds the fixed list of tracked instruments.
package registry

import (
	"errors"
	"strings"

	"metalpulse/internal/domain"
)

// ErrUnknownSymbol is returned when a symbol is not tracked.
var ErrUnknownSymbol = errors.New("unknown symbol")

// MetalStocks are the seven Nifty Metal constituents tracked by default.
var MetalStocks = []domain.Instrument{
	{
		Symbol:       "TATASTEEL",
		Name:         "Tata Steel Limited",
		ShortName:    "Tata Steel",
		MarketSymbol: "TATASTEEL.NS",
		SearchTerms:  []string{"Tata Steel", "TATASTEEL", "Tata Steel India"},
		Sector:       domain.SectorSteel,
	},
	{
		Symbol:       "JSWSTEEL",
		Name:         "JSW Steel Limited",
		ShortName:    "JSW Steel",
		MarketSymbol: "JSWSTEEL.NS",
		SearchTerms:  []string{"JSW Steel", "JSWSTEEL", "JSW Steel India"},
		Sector:       domain.SectorSteel,
	},
	{
		Symbol:       "HINDALCO",
		Name:         "Hindalco Industries Limited",
		ShortName:    "Hindalco",
		MarketSymbol: "HINDALCO.NS",
		SearchTerms:  []string{"Hindalco", "Hindalco Industries", "Novelis"},
		Sector:       domain.SectorAluminum,
	},
	{
		Symbol:       "VEDL",
		Name:         "Vedanta Limited",
		ShortName:    "Vedanta",
		MarketSymbol: "VEDL.NS",
		SearchTerms:  []string{"Vedanta Limited", "VEDL", "Vedanta India metals"},
		Sector:       domain.SectorMining,
	},
	{
		Symbol:       "SAIL",
		Name:         "Steel Authority of India Limited",
		ShortName:    "SAIL",
		MarketSymbol: "SAIL.NS",
		SearchTerms:  []string{"SAIL", "Steel Authority of India", "SAIL India steel"},
		Sector:       domain.SectorSteel,
	},
	{
		Symbol:       "NMDC",
		Name:         "NMDC Limited",
		ShortName:    "NMDC",
		MarketSymbol: "NMDC.NS",
		SearchTerms:  []string{"NMDC", "NMDC Limited", "NMDC India iron ore"},
		Sector:       domain.SectorMining,
	},
	{
		Symbol:       "COALINDIA",
		Name:         "Coal India Limited",
		ShortName:    "Coal India",
		MarketSymbol: "COALINDIA.NS",
		SearchTerms:  []string{"Coal India", "COALINDIA", "Coal India Limited"},
		Sector:       domain.SectorCoal,
	},
}

// Registry is an immutable, ordered set of instruments.
type Registry struct {
	list     []domain.Instrument
	bySymbol map[string]int
}

// New builds a Registry from the given instruments. An empty list selects
// MetalStocks. Symbols are upper-cased; later duplicates are dropped.
func New(instruments []domain.Instrument) *Registry {
	if len(instruments) == 0 {
		instruments = MetalStocks
	}
	r := &Registry{bySymbol: make(map[string]int, len(instruments))}
	for _, inst := range instruments {
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if inst.Symbol == "" {
			continue
		}
		if _, dup := r.bySymbol[inst.Symbol]; dup {
			continue
		}
		if inst.MarketSymbol == "" {
			inst.MarketSymbol = inst.Symbol
		}
		if inst.ShortName == "" {
			inst.ShortName = inst.Name
		}
		if len(inst.SearchTerms) == 0 {
			inst.SearchTerms = []string{inst.Name}
		}
		inst.SearchTerms = append([]string(nil), inst.SearchTerms...)
		r.bySymbol[inst.Symbol] = len(r.list)
		r.list = append(r.list, inst)
	}
	return r
}

// All returns a copy of the instruments in registry order.
func (r *Registry) All() []domain.Instrument {
	out := make([]domain.Instrument, len(r.list))
	copy(out, r.list)
	return out
}

// Symbols returns the tracked symbols in registry order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.list))
	for i, inst := range r.list {
		out[i] = inst.Symbol
	}
	return out
}

// Lookup returns the instrument for symbol (case-insensitive).
func (r *Registry) Lookup(symbol string) (domain.Instrument, error) {
	i, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return domain.Instrument{}, ErrUnknownSymbol
	}
	return r.list[i], nil
}

// Len returns the number of tracked instruments.
func (r *Registry) Len() int { return len(r.list) }
