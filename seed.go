package main

import (
	"time"

	portfoliox "github.com/tanpawarit/portfolio-copilot/agent/portfolio"
)

const demoUser = "demo-user"

func seedDemo() *portfoliox.MemoryRepository {
	repo := portfoliox.NewMemoryRepository()
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	repo.AddAccount(portfoliox.Account{ID: "brokerage", UserID: demoUser, Name: "Brokerage", Type: "taxable", Currency: "USD"})
	repo.AddAccount(portfoliox.Account{ID: "ira", UserID: demoUser, Name: "Roth IRA", Type: "retirement", Currency: "USD"})

	holdings := []portfoliox.Holding{
		{AccountID: "brokerage", Symbol: "AAPL", Quantity: 40, CostBasis: 5200, AssetClass: "equity", Sector: "technology"},
		{AccountID: "brokerage", Symbol: "MSFT", Quantity: 15, CostBasis: 4100, AssetClass: "equity", Sector: "technology"},
		{AccountID: "brokerage", Symbol: "JNJ", Quantity: 20, CostBasis: 3150, AssetClass: "equity", Sector: "healthcare"},
		{AccountID: "ira", Symbol: "VTI", Quantity: 60, CostBasis: 12000, AssetClass: "equity", Sector: "broad market"},
		{AccountID: "ira", Symbol: "BND", Quantity: 80, CostBasis: 6000, AssetClass: "fixed income", Sector: "bonds"},
	}
	for _, h := range holdings {
		h.UserID = demoUser
		repo.AddHolding(h)
	}

	prices := map[string]float64{"AAPL": 228.5, "MSFT": 415.2, "JNJ": 158.9, "VTI": 281.3, "BND": 72.4}
	for symbol, px := range prices {
		repo.SetPrice(portfoliox.Price{Symbol: symbol, Price: px, AsOf: asOf})
	}

	txs := []portfoliox.Transaction{
		{AccountID: "brokerage", Symbol: "AAPL", Type: "buy", Quantity: 40, Amount: -5200, ExecutedAt: asOf.AddDate(-1, 0, 0)},
		{AccountID: "brokerage", Symbol: "MSFT", Type: "buy", Quantity: 15, Amount: -4100, ExecutedAt: asOf.AddDate(0, -10, 0)},
		{AccountID: "brokerage", Symbol: "JNJ", Type: "dividend", Amount: 23.8, ExecutedAt: asOf.AddDate(0, -1, 0)},
		{AccountID: "ira", Type: "deposit", Amount: 7000, ExecutedAt: asOf.AddDate(0, -3, 0)},
		{AccountID: "ira", Symbol: "BND", Type: "buy", Quantity: 80, Amount: -6000, ExecutedAt: asOf.AddDate(0, -2, 0)},
	}
	for i, tx := range txs {
		tx.ID = int64(i + 1)
		tx.UserID = demoUser
		repo.AddTransaction(tx)
	}
	return repo
}
