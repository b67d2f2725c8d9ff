package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidGrouping  = errors.New("invalid allocation grouping")
	ErrUnknownAccount   = errors.New("unknown account")
)

const (
	GroupByAssetClass = "asset_class"
	GroupBySector     = "sector"
	GroupBySymbol     = "symbol"
	GroupByAccount    = "account"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("portfolio repository is required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Snapshot recomputes every position of the user from holdings and latest prices.
// It refuses to value a position without a price rather than guessing one.
func (s *Service) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	start := s.now()
	holdings, err := s.repo.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	symbols := uniqueSymbols(holdings)
	prices, err := s.repo.Prices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, sym := range symbols {
		if _, ok := prices[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, strings.Join(missing, ","))
	}

	snap := &Snapshot{
		UserID:     userID,
		Positions:  make([]Position, 0, len(holdings)),
		ComputedAt: s.now().UTC(),
	}
	for _, h := range holdings {
		p := prices[h.Symbol]
		mv := h.Quantity * p.Price
		snap.Positions = append(snap.Positions, Position{
			AccountID:     h.AccountID,
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			Price:         p.Price,
			PriceAsOf:     p.AsOf,
			MarketValue:   round2(mv),
			CostBasis:     round2(h.CostBasis),
			UnrealizedPnL: round2(mv - h.CostBasis),
			AssetClass:    h.AssetClass,
			Sector:        h.Sector,
		})
		snap.TotalValue += mv
		snap.TotalCost += h.CostBasis
	}
	for i := range snap.Positions {
		snap.Positions[i].Weight = ratio(snap.Positions[i].MarketValue, snap.TotalValue)
	}
	snap.UnrealizedPnL = round2(snap.TotalValue - snap.TotalCost)
	snap.TotalValue = round2(snap.TotalValue)
	snap.TotalCost = round2(snap.TotalCost)

	zerolog.Ctx(ctx).Debug().
		Str("user_id", userID).
		Int("positions", len(snap.Positions)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("portfolio snapshot computed")
	return snap, nil
}

func (s *Service) Accounts(ctx context.Context, userID string) ([]Account, error) {
	return s.repo.Accounts(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID string, filter TxFilter) ([]Transaction, error) {
	return s.repo.Transactions(ctx, userID, filter)
}

func Summarize(snap *Snapshot) Summary {
	if snap == nil {
		return Summary{}
	}
	return Summary{
		TotalValue:       snap.TotalValue,
		TotalCost:        snap.TotalCost,
		UnrealizedPnL:    snap.UnrealizedPnL,
		UnrealizedPnLPct: ratio(snap.UnrealizedPnL, snap.TotalCost) * 100,
		Positions:        len(snap.Positions),
		ComputedAt:       snap.ComputedAt,
	}
}

// FilterPositions returns positions of one account, or all when accountID is empty.
func FilterPositions(snap *Snapshot, accountID string) ([]Position, error) {
	if snap == nil {
		return nil, nil
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return append([]Position(nil), snap.Positions...), nil
	}
	var out []Position
	for _, p := range snap.Positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return out, nil
}

// Allocate groups snapshot market value, largest group first.
func Allocate(snap *Snapshot, groupBy string) ([]AllocationSlice, error) {
	groupBy = strings.TrimSpace(strings.ToLower(groupBy))
	if groupBy == "" {
		groupBy = GroupByAssetClass
	}

	var keyOf func(Position) string
	switch groupBy {
	case GroupByAssetClass:
		keyOf = func(p Position) string { return p.AssetClass }
	case GroupBySector:
		keyOf = func(p Position) string { return p.Sector }
	case GroupBySymbol:
		keyOf = func(p Position) string { return p.Symbol }
	case GroupByAccount:
		keyOf = func(p Position) string { return p.AccountID }
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidGrouping, groupBy)
	}
	if snap == nil {
		return nil, nil
	}

	totals := make(map[string]float64, 8)
	for _, p := range snap.Positions {
		k := keyOf(p)
		if k == "" {
			k = "unclassified"
		}
		totals[k] += p.MarketValue
	}

	out := make([]AllocationSlice, 0, len(totals))
	for k, v := range totals {
		out = append(out, AllocationSlice{
			Group:       k,
			MarketValue: round2(v),
			Weight:      ratio(v, snap.TotalValue),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketValue == out[j].MarketValue {
			return out[i].Group < out[j].Group
		}
		return out[i].MarketValue > out[j].MarketValue
	})
	return out, nil
}

func uniqueSymbols(holdings []Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.Symbol]; ok {
			continue
		}
		seen[h.Symbol] = struct{}{}
		out = append(out, h.Symbol)
	}
	sort.Strings(out)
	return out
}

func ratio(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(part/total*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
