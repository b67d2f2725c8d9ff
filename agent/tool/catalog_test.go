package tool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	memox "github.com/tanpawarit/portfolio-copilot/agent/memo"
	portfoliox "github.com/tanpawarit/portfolio-copilot/agent/portfolio"
)

type countingPortfolio struct {
	svc       *portfoliox.Service
	snapshots atomic.Int32
	delay     time.Duration
}

func (c *countingPortfolio) Snapshot(ctx context.Context, userID string) (*portfoliox.Snapshot, error) {
	c.snapshots.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.svc.Snapshot(ctx, userID)
}

func (c *countingPortfolio) Accounts(ctx context.Context, userID string) ([]portfoliox.Account, error) {
	return c.svc.Accounts(ctx, userID)
}

func (c *countingPortfolio) Transactions(ctx context.Context, userID string, filter portfoliox.TxFilter) ([]portfoliox.Transaction, error) {
	return c.svc.Transactions(ctx, userID, filter)
}

func newCountingPortfolio(t *testing.T) *countingPortfolio {
	t.Helper()

	repo := portfoliox.NewMemoryRepository()
	repo.AddAccount(portfoliox.Account{ID: "brk-1", UserID: "u1", Name: "Brokerage", Type: "taxable", Currency: "USD"})
	repo.AddHolding(portfoliox.Holding{UserID: "u1", AccountID: "brk-1", Symbol: "AAPL", Quantity: 10, CostBasis: 1500, AssetClass: "equity", Sector: "technology"})
	repo.AddHolding(portfoliox.Holding{UserID: "u2", AccountID: "brk-2", Symbol: "MSFT", Quantity: 5, CostBasis: 1000, AssetClass: "equity", Sector: "technology"})
	repo.SetPrice(portfoliox.Price{Symbol: "AAPL", Price: 200, AsOf: time.Now()})
	repo.SetPrice(portfoliox.Price{Symbol: "MSFT", Price: 400, AsOf: time.Now()})
	repo.AddTransaction(portfoliox.Transaction{UserID: "u1", AccountID: "brk-1", Symbol: "AAPL", Type: "buy", Quantity: 10, Amount: 1500, ExecutedAt: time.Now()})

	svc, err := portfoliox.NewService(repo)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &countingPortfolio{svc: svc}
}

func TestBuildRegistersCatalog(t *testing.T) {
	t.Parallel()

	reg, err := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: newCountingPortfolio(t)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{ToolPortfolioSummary, ToolHoldings, ToolAllocation, ToolAccounts, ToolTransactions, ToolCalculate}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d capabilities, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("capability[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if infos := reg.Descriptors(); len(infos) != len(want) || infos[0].Name != ToolPortfolioSummary {
		t.Fatalf("unexpected descriptors: %+v", infos)
	}
}

func TestBuildRejectsEmptyPrincipal(t *testing.T) {
	t.Parallel()

	_, err := Build(contractx.Principal{UserID: "  "}, Deps{Portfolio: newCountingPortfolio(t)})
	if !errors.Is(err, contractx.ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	_, err := NewRegistry(
		Capability{Name: "a", Invoke: noop},
		Capability{Name: "a", Invoke: noop},
	)
	if !errors.Is(err, contractx.ErrDuplicateCapability) {
		t.Fatalf("expected ErrDuplicateCapability, got %v", err)
	}

	if _, err := NewRegistry(Capability{Name: "b"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil invoke, got %v", err)
	}
}

func TestSummaryIsScopedToPrincipal(t *testing.T) {
	t.Parallel()

	reg, _ := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: newCountingPortfolio(t)})
	c, ok := reg.Lookup(ToolPortfolioSummary)
	if !ok {
		t.Fatal("summary capability missing")
	}

	out, err := c.Invoke(context.Background(), map[string]any{"user_id": "u2"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	sum, ok := out.(portfoliox.Summary)
	if !ok {
		t.Fatalf("unexpected result type: %T", out)
	}
	if sum.TotalValue != 2000 || sum.Positions != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSnapshotSharedWithinRequest(t *testing.T) {
	t.Parallel()

	fp := newCountingPortfolio(t)
	fp.delay = 20 * time.Millisecond
	reg, _ := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: fp})

	cache := memox.New(context.Background())
	defer cache.Close()
	ctx := memox.WithCache(context.Background(), cache)

	names := []string{ToolPortfolioSummary, ToolHoldings, ToolAllocation, ToolPortfolioSummary}
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		c, _ := reg.Lookup(name)
		wg.Add(1)
		go func(i int, c Capability) {
			defer wg.Done()
			_, errs[i] = c.Invoke(ctx, map[string]any{})
		}(i, c)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if n := fp.snapshots.Load(); n != 1 {
		t.Fatalf("expected one snapshot computation, got %d", n)
	}
}

func TestSnapshotWithoutCacheRecomputes(t *testing.T) {
	t.Parallel()

	fp := newCountingPortfolio(t)
	reg, _ := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: fp})
	c, _ := reg.Lookup(ToolPortfolioSummary)

	for i := 0; i < 2; i++ {
		if _, err := c.Invoke(context.Background(), nil); err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
	}
	if n := fp.snapshots.Load(); n != 2 {
		t.Fatalf("expected 2 computations without a cache, got %d", n)
	}
}

func TestHoldingsRejectsNonStringAccount(t *testing.T) {
	t.Parallel()

	reg, _ := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: newCountingPortfolio(t)})
	c, _ := reg.Lookup(ToolHoldings)

	if _, err := c.Invoke(context.Background(), map[string]any{"account_id": 7}); err == nil {
		t.Fatal("expected argument type error")
	}
	out, err := c.Invoke(context.Background(), map[string]any{"account_id": "brk-1"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if positions := out.([]portfoliox.Position); len(positions) != 1 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
}

func TestTransactionsAcceptsJSONNumberLimit(t *testing.T) {
	t.Parallel()

	reg, _ := Build(contractx.Principal{UserID: "u1"}, Deps{Portfolio: newCountingPortfolio(t)})
	c, _ := reg.Lookup(ToolTransactions)

	out, err := c.Invoke(context.Background(), map[string]any{"limit": float64(5), "symbol": "aapl"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if txs := out.([]portfoliox.Transaction); len(txs) != 1 {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}

func TestCalculate(t *testing.T) {
	t.Parallel()

	c := calculateCapability()
	out, err := c.Invoke(context.Background(), map[string]any{"expression": "2 + 3 * (4 - 1)"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res := out.(CalculateOutput); res.Result != 11 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := c.Invoke(context.Background(), map[string]any{"expression": "2 + abc"}); err == nil {
		t.Fatal("expected invalid character error")
	}
	if _, err := c.Invoke(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected missing expression error")
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr    string
		want    float64
		wantErr bool
	}{
		{expr: "1 + 2", want: 3},
		{expr: "2 ^ 3 ^ 2", want: 512},
		{expr: "-2 ^ 2", want: -4},
		{expr: "10 % 4", want: 2},
		{expr: "(35000 - 31000) / 31000 * 100", want: (35000.0 - 31000.0) / 31000.0 * 100},
		{expr: "1_000 * 2", want: 2000},
		{expr: "1 / 0", wantErr: true},
		{expr: "(1 + 2", wantErr: true},
		{expr: "1 + 2)", wantErr: true},
		{expr: "1..2", wantErr: true},
		{expr: "", wantErr: true},
		{expr: "3 +", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Evaluate(%q) expected error, got %v", tc.expr, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Evaluate(%q) error = %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}
