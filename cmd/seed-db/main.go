package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	StockQuantity int             `json:"stock_quantity"`
}

const upsertProductSQL = `INSERT INTO products (id, name, sku, price, discount_price, stock_quantity, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		sku = EXCLUDED.sku,
		price = EXCLUDED.price,
		discount_price = EXCLUDED.discount_price,
		stock_quantity = EXCLUDED.stock_quantity,
		is_active = TRUE,
		updated_at = now()`

const upsertCouponSQL = `INSERT INTO coupons
	(id, code, type, value, minimum_order_amount, maximum_discount_amount, usage_limit,
	 valid_from, valid_until, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		type = EXCLUDED.type,
		value = EXCLUDED.value,
		minimum_order_amount = EXCLUDED.minimum_order_amount,
		maximum_discount_amount = EXCLUDED.maximum_discount_amount,
		usage_limit = EXCLUDED.usage_limit,
		valid_from = EXCLUDED.valid_from,
		valid_until = EXCLUDED.valid_until,
		is_active = TRUE`

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.SKU, p.Price, p.DiscountPrice, p.StockQuantity)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type couponSeed struct {
	id         string
	code       string
	typ        string
	value      decimal.Decimal
	minOrder   decimal.Decimal
	maxOff     decimal.Decimal
	usageLimit int
	validDays  int
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding sample coupons")

	now := time.Now()
	coupons := []couponSeed{
		{
			id:         "seed-save20",
			code:       "SAVE20",
			typ:        "percentage",
			value:      decimal.NewFromInt(20),
			minOrder:   decimal.NewFromInt(1000),
			maxOff:     decimal.NewFromInt(200),
			usageLimit: 1,
			validDays:  90,
		},
		{
			id:         "seed-flat100",
			code:       "FLAT100",
			typ:        "fixed",
			value:      decimal.NewFromInt(100),
			minOrder:   decimal.NewFromInt(500),
			usageLimit: 3,
			validDays:  30,
		},
		{
			id:         "seed-welcome10",
			code:       "WELCOME10",
			typ:        "percentage",
			value:      decimal.NewFromInt(10),
			usageLimit: 1,
			validDays:  365,
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.id, c.code, c.typ, c.value, c.minOrder, c.maxOff, c.usageLimit,
			now, now.AddDate(0, 0, c.validDays))
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}
