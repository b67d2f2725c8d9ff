package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultTxLimit = 20
	maxTxLimit     = 100
)

// Repository is the read side of the portfolio data source.
type Repository interface {
	Accounts(ctx context.Context, userID string) ([]Account, error)
	Holdings(ctx context.Context, userID string) ([]Holding, error)
	Prices(ctx context.Context, symbols []string) (map[string]Price, error)
	Transactions(ctx context.Context, userID string, filter TxFilter) ([]Transaction, error)
}

type DBConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"5s"`
}

// OpenDB opens a Postgres connection pool through bun's pgdriver.
func OpenDB(cfg DBConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("portfolio db dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithReadTimeout(cfg.ReadTimeout),
		pgdriver.WithWriteTimeout(cfg.WriteTimeout),
	))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

type BunRepository struct {
	db bun.IDB
}

var _ Repository = (*BunRepository)(nil)

func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) Accounts(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	err := r.db.NewSelect().
		Model(&accounts).
		Where("a.user_id = ?", userID).
		OrderExpr("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	return accounts, nil
}

func (r *BunRepository) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	var holdings []Holding
	err := r.db.NewSelect().
		Model(&holdings).
		Where("h.user_id = ?", userID).
		OrderExpr("h.account_id ASC, h.symbol ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select holdings: %w", err)
	}
	return holdings, nil
}

func (r *BunRepository) Prices(ctx context.Context, symbols []string) (map[string]Price, error) {
	out := make(map[string]Price, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var prices []Price
	err := r.db.NewSelect().
		Model(&prices).
		Where("p.symbol IN (?)", bun.In(symbols)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select prices: %w", err)
	}
	for _, p := range prices {
		out[p.Symbol] = p
	}
	return out, nil
}

func (r *BunRepository) Transactions(ctx context.Context, userID string, filter TxFilter) ([]Transaction, error) {
	filter = filter.normalized()

	var txs []Transaction
	q := r.db.NewSelect().
		Model(&txs).
		Where("t.user_id = ?", userID)
	if filter.Symbol != "" {
		q = q.Where("t.symbol = ?", filter.Symbol)
	}
	err := q.OrderExpr("t.executed_at DESC").
		Limit(filter.Limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return txs, nil
}

func (f TxFilter) normalized() TxFilter {
	f.Symbol = strings.ToUpper(strings.TrimSpace(f.Symbol))
	if f.Limit <= 0 {
		f.Limit = defaultTxLimit
	}
	if f.Limit > maxTxLimit {
		f.Limit = maxTxLimit
	}
	return f
}

// MemoryRepository serves fixed data from memory. Used by the demo entrypoint and tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     []Account
	holdings     []Holding
	prices       map[string]Price
	transactions []Transaction
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prices: make(map[string]Price)}
}

func (m *MemoryRepository) AddAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, a)
}

func (m *MemoryRepository) AddHolding(h Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = append(m.holdings, h)
}

func (m *MemoryRepository) SetPrice(p Price) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[p.Symbol] = p
}

func (m *MemoryRepository) AddTransaction(t Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, t)
}

func (m *MemoryRepository) Accounts(_ context.Context, userID string) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryRepository) Holdings(_ context.Context, userID string) ([]Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Holding
	for _, h := range m.holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemoryRepository) Prices(_ context.Context, symbols []string) (map[string]Price, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Price, len(symbols))
	for _, s := range symbols {
		if p, ok := m.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (m *MemoryRepository) Transactions(_ context.Context, userID string, filter TxFilter) ([]Transaction, error) {
	filter = filter.normalized()

	m.mu.RLock()
	var out []Transaction
	for _, t := range m.transactions {
		if t.UserID != userID {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		out = append(out, t)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
