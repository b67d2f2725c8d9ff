package portfolio

import (
	"time"

	"github.com/uptrace/bun"
)

type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID       string `bun:"id,pk" json:"id"`
	UserID   string `bun:"user_id,notnull" json:"-"`
	Name     string `bun:"name,notnull" json:"name"`
	Type     string `bun:"type,notnull" json:"type"`
	Currency string `bun:"currency,notnull" json:"currency"`
}

type Holding struct {
	bun.BaseModel `bun:"table:holdings,alias:h"`

	ID         int64   `bun:"id,pk,autoincrement" json:"-"`
	UserID     string  `bun:"user_id,notnull" json:"-"`
	AccountID  string  `bun:"account_id,notnull" json:"account_id"`
	Symbol     string  `bun:"symbol,notnull" json:"symbol"`
	Quantity   float64 `bun:"quantity,notnull" json:"quantity"`
	CostBasis  float64 `bun:"cost_basis,notnull" json:"cost_basis"`
	AssetClass string  `bun:"asset_class" json:"asset_class"`
	Sector     string  `bun:"sector" json:"sector"`
}

type Price struct {
	bun.BaseModel `bun:"table:prices,alias:p"`

	Symbol string    `bun:"symbol,pk" json:"symbol"`
	Price  float64   `bun:"price,notnull" json:"price"`
	AsOf   time.Time `bun:"as_of,notnull" json:"as_of"`
}

type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID     string    `bun:"user_id,notnull" json:"-"`
	AccountID  string    `bun:"account_id,notnull" json:"account_id"`
	Symbol     string    `bun:"symbol" json:"symbol,omitempty"`
	Type       string    `bun:"type,notnull" json:"type"`
	Quantity   float64   `bun:"quantity" json:"quantity"`
	Amount     float64   `bun:"amount,notnull" json:"amount"`
	ExecutedAt time.Time `bun:"executed_at,notnull" json:"executed_at"`
}

type TxFilter struct {
	Symbol string
	Limit  int
}

// Position is a holding valued at the latest known price.
type Position struct {
	AccountID     string    `json:"account_id"`
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	PriceAsOf     time.Time `json:"price_as_of"`
	MarketValue   float64   `json:"market_value"`
	CostBasis     float64   `json:"cost_basis"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	Weight        float64   `json:"weight"`
	AssetClass    string    `json:"asset_class"`
	Sector        string    `json:"sector"`
}

type AllocationSlice struct {
	Group       string  `json:"group"`
	MarketValue float64 `json:"market_value"`
	Weight      float64 `json:"weight"`
}

// Snapshot is the result of a full portfolio recompute.
type Snapshot struct {
	UserID        string     `json:"user_id"`
	Positions     []Position `json:"positions"`
	TotalValue    float64    `json:"total_value"`
	TotalCost     float64    `json:"total_cost"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	ComputedAt    time.Time  `json:"computed_at"`
}

type Summary struct {
	TotalValue       float64   `json:"total_value"`
	TotalCost        float64   `json:"total_cost"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	Positions        int       `json:"positions"`
	ComputedAt       time.Time `json:"computed_at"`
}
