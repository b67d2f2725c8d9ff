package tool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	memox "github.com/tanpawarit/portfolio-copilot/agent/memo"
	portfoliox "github.com/tanpawarit/portfolio-copilot/agent/portfolio"
)

const (
	ToolPortfolioSummary = "get_portfolio_summary"
	ToolHoldings         = "get_holdings"
	ToolAllocation       = "get_allocation"
	ToolAccounts         = "get_accounts"
	ToolTransactions     = "get_transactions"
	ToolCalculate        = "calculate"
)

const snapshotScope = "portfolio.snapshot"

// PortfolioService is the slice of the portfolio domain the catalog needs.
type PortfolioService interface {
	Snapshot(ctx context.Context, userID string) (*portfoliox.Snapshot, error)
	Accounts(ctx context.Context, userID string) ([]portfoliox.Account, error)
	Transactions(ctx context.Context, userID string, filter portfoliox.TxFilter) ([]portfoliox.Transaction, error)
}

type Deps struct {
	Portfolio PortfolioService
}

// Build returns the capabilities available to principal. Every capability is bound to
// the principal's user id; the model cannot address another user's data.
func Build(principal contractx.Principal, deps Deps) (*Registry, error) {
	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return nil, contractx.ErrInvalidPrincipal
	}
	if deps.Portfolio == nil {
		return nil, errors.New("portfolio service is required")
	}

	b := &catalog{userID: userID, svc: deps.Portfolio}
	return NewRegistry(
		b.summary(),
		b.holdings(),
		b.allocation(),
		b.accounts(),
		b.transactions(),
		calculateCapability(),
	)
}

type catalog struct {
	userID string
	svc    PortfolioService
}

// snapshot goes through the request memo cache so parallel calls share one recompute.
func (c *catalog) snapshot(ctx context.Context) (*portfoliox.Snapshot, error) {
	key, err := memox.Fingerprint(snapshotScope, map[string]any{"user_id": c.userID})
	if err != nil {
		return nil, err
	}
	v, err := memox.Do(ctx, key, func(ctx context.Context) (any, error) {
		return c.svc.Snapshot(ctx, c.userID)
	})
	if err != nil {
		return nil, err
	}
	snap, ok := v.(*portfoliox.Snapshot)
	if !ok {
		return nil, fmt.Errorf("unexpected snapshot type %T", v)
	}
	return snap, nil
}

func (c *catalog) summary() Capability {
	return Capability{
		Name:        ToolPortfolioSummary,
		Description: "Total market value, cost basis and unrealized profit/loss of the user's whole portfolio.",
		Invoke: func(ctx context.Context, _ map[string]any) (any, error) {
			snap, err := c.snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return portfoliox.Summarize(snap), nil
		},
	}
}

func (c *catalog) holdings() Capability {
	return Capability{
		Name:        ToolHoldings,
		Description: "Positions with quantity, latest price, market value, weight and unrealized P/L. Optionally filtered to one account.",
		Params: map[string]*schema.ParameterInfo{
			"account_id": {Type: schema.String, Desc: "Only return positions held in this account"},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			accountID, err := stringArg(args, "account_id")
			if err != nil {
				return nil, err
			}
			snap, err := c.snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return portfoliox.FilterPositions(snap, accountID)
		},
	}
}

func (c *catalog) allocation() Capability {
	return Capability{
		Name:        ToolAllocation,
		Description: "Portfolio allocation by market value, grouped by asset class, sector, symbol or account.",
		Params: map[string]*schema.ParameterInfo{
			"group_by": {
				Type: schema.String,
				Desc: "Grouping dimension, defaults to asset_class",
				Enum: []string{
					portfoliox.GroupByAssetClass,
					portfoliox.GroupBySector,
					portfoliox.GroupBySymbol,
					portfoliox.GroupByAccount,
				},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			groupBy, err := stringArg(args, "group_by")
			if err != nil {
				return nil, err
			}
			snap, err := c.snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return portfoliox.Allocate(snap, groupBy)
		},
	}
}

func (c *catalog) accounts() Capability {
	return Capability{
		Name:        ToolAccounts,
		Description: "List the user's accounts with id, name, type and currency.",
		Invoke: func(ctx context.Context, _ map[string]any) (any, error) {
			return c.svc.Accounts(ctx, c.userID)
		},
	}
}

func (c *catalog) transactions() Capability {
	return Capability{
		Name:        ToolTransactions,
		Description: "Most recent transactions, newest first.",
		Params: map[string]*schema.ParameterInfo{
			"symbol": {Type: schema.String, Desc: "Only transactions for this ticker symbol"},
			"limit":  {Type: schema.Integer, Desc: "Maximum rows to return (default 20, max 100)"},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			symbol, err := stringArg(args, "symbol")
			if err != nil {
				return nil, err
			}
			limit, err := intArg(args, "limit")
			if err != nil {
				return nil, err
			}
			return c.svc.Transactions(ctx, c.userID, portfoliox.TxFilter{Symbol: symbol, Limit: limit})
		},
	}
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return strings.TrimSpace(s), nil
}

func intArg(args map[string]any, name string) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}
