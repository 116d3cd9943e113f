package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	acctshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const seedActor = "seed"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := shared.ContextWithActor(context.Background(), seedActor)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	audit := shared.NewAuditLogger(pool)

	fmt.Println("→ Seeding chart of accounts...")
	if err := seedAccounts(ctx, accounts.NewService(accounts.NewRepository(pool), audit)); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	// Seeding bumps the directory cache version so running servers reload.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Printf("redis unavailable, skipping cache bump: %v", err)
	} else {
		defer func() { _ = redisClient.Close() }()
	}
	repo := masterdata.NewRepository(pool)
	directory := masterdata.NewDirectory(repo, masterdata.NewCache(redisClient, cfg.DirectoryCacheTTL))
	service := masterdata.NewService(repo, directory, audit, nil)

	fmt.Println("→ Seeding parties...")
	if err := seedParties(ctx, service); err != nil {
		log.Fatalf("seed parties: %v", err)
	}
	fmt.Println("→ Seeding products...")
	if err := seedProducts(ctx, service); err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

type accountSeed struct {
	code     string
	name     string
	kind     accounts.AccountType
	parent   string
	category bool
}

// Parents come before their children.
var chart = []accountSeed{
	{"1000", "Assets", accounts.AccountTypeAsset, "", true},
	{"1100", "Cash", accounts.AccountTypeAsset, "1000", false},
	{"1200", "Accounts Receivable", accounts.AccountTypeAsset, "1000", false},
	{"1300", "Inventory", accounts.AccountTypeAsset, "1000", false},
	{"2000", "Liabilities", accounts.AccountTypeLiability, "", true},
	{"2100", "Accounts Payable", accounts.AccountTypeLiability, "2000", false},
	{"2200", "Tax Payable", accounts.AccountTypeLiability, "2000", false},
	{"3000", "Equity", accounts.AccountTypeEquity, "", true},
	{"3100", "Owner Capital", accounts.AccountTypeEquity, "3000", false},
	{"3200", "Retained Earnings", accounts.AccountTypeEquity, "3000", false},
	{"4000", "Revenue", accounts.AccountTypeRevenue, "", true},
	{"4100", "Sales Revenue", accounts.AccountTypeRevenue, "4000", false},
	{"5000", "Cost of Goods Sold", accounts.AccountTypeCOGS, "", false},
	{"6000", "Expenses", accounts.AccountTypeExpense, "", true},
	{"6100", "Rent Expense", accounts.AccountTypeExpense, "6000", false},
	{"6200", "Shipping Expense", accounts.AccountTypeExpense, "6000", false},
}

func seedAccounts(ctx context.Context, svc *accounts.Service) error {
	for _, a := range chart {
		input := accounts.CreateInput{Code: a.code, Name: a.name, Type: a.kind, IsCategory: a.category}
		if a.parent != "" {
			parent := a.parent
			input.ParentCode = &parent
		}
		if _, err := svc.Add(ctx, input); err != nil {
			if errors.Is(err, acctshared.ErrDuplicateCode) {
				continue
			}
			return fmt.Errorf("account %s: %w", a.code, err)
		}
	}
	return nil
}

func seedParties(ctx context.Context, svc *masterdata.Service) error {
	parties := []masterdata.PartyInput{
		{Code: "C-ACME", Name: "Acme Retail", Kind: masterdata.PartyCustomer, Email: "billing@acme.local", IsActive: true},
		{Code: "C-GLOBEX", Name: "Globex Stores", Kind: masterdata.PartyCustomer, Email: "ap@globex.local", IsActive: true},
		{Code: "V-INITECH", Name: "Initech Supply", Kind: masterdata.PartyVendor, Email: "sales@initech.local", IsActive: true},
		{Code: "B-UMBRELLA", Name: "Umbrella Trading", Kind: masterdata.PartyBoth, IsActive: true},
	}
	for _, p := range parties {
		if _, err := svc.CreateParty(ctx, p); err != nil {
			if errors.Is(err, masterdata.ErrDuplicateCode) {
				continue
			}
			return fmt.Errorf("party %s: %w", p.Code, err)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, svc *masterdata.Service) error {
	products := []masterdata.ProductInput{
		{SKU: "WID-001", Name: "Widget", Price: decimal.RequireFromString("12.50"), IsActive: true},
		{SKU: "GAD-001", Name: "Gadget", Price: decimal.RequireFromString("40.00"), IsActive: true},
		{SKU: "SPR-010", Name: "Spare Part Kit", Price: decimal.RequireFromString("7.25"), IsActive: true},
	}
	for _, p := range products {
		if _, err := svc.CreateProduct(ctx, p); err != nil {
			if errors.Is(err, masterdata.ErrDuplicateSKU) {
				continue
			}
			return fmt.Errorf("product %s: %w", p.SKU, err)
		}
	}
	return nil
}
