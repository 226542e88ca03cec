// Command seed-db loads catalog items, starter promo codes, and an admin
// API key into the database. It is idempotent: reruns upsert.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/repository"
)

type catalogItemJSON struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or ADDARA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ADDARA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ADDARA_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or ADDARA_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ADDARA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedPromoCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

var kindTables = map[string]string{
	"card":      "cards",
	"deck":      "decks",
	"accessory": "accessories",
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var items []catalogItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting catalog items", slog.Int("count", len(items)))

	for _, item := range items {
		table, ok := kindTables[item.Kind]
		if !ok {
			return errors.Errorf("item %s: unknown kind %q", item.ID, item.Kind)
		}
		snapshot := item.Snapshot
		if snapshot == nil {
			snapshot = json.RawMessage("{}")
		}

		_, err := pool.Exec(ctx, `
			INSERT INTO `+table+` (id, name, price, stock, snapshot)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				snapshot = EXCLUDED.snapshot,
				updated_at = now()
		`, item.ID, item.Name, item.Price, item.Stock, snapshot)
		if err != nil {
			return errors.Wrapf(err, "upsert %s %s", item.Kind, item.ID)
		}

		slog.Info("upserted item",
			slog.String("kind", item.Kind),
			slog.String("id", item.ID),
			slog.String("name", item.Name),
		)
	}

	return nil
}

func seedPromoCodes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding starter promo codes")

	promos := []struct {
		code   string
		typ    string
		amount string
	}{
		{"WELCOME10", "percentage", "10"},
		{"LAUNCH5", "fixed", "5"},
	}

	for _, p := range promos {
		_, err := pool.Exec(ctx, `
			INSERT INTO promo_codes (code, kind, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind,
				amount = EXCLUDED.amount
		`, p.code, p.typ, decimal.RequireFromString(p.amount))
		if err != nil {
			return errors.Wrapf(err, "upsert promo code %s", p.code)
		}

		slog.Info("upserted promo code", slog.String("code", p.code))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ('admin', $1, 'Admin back office key', $2, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			scopes = EXCLUDED.scopes,
			active = TRUE
	`, keyHash, []string{"orders", "promocodes", "refunds"})
	if err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "admin"))

	return nil
}
