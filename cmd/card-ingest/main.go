// Command card-ingest imports distributor card feeds into the catalog.
//
// Distributors publish gzip-compressed CSV dumps (cardbaseN.gz, one card per
// line: id,name,price,stock). Listings are only trusted when at least two
// independent feeds carry the same card id, which filters out the phantom
// inventory individual distributors are known to report. The feeds are large,
// so membership is tracked with bloom filters built in a first concurrent
// pass; a second pass collects the cross-verified records.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/addara/shop-api/internal/repository"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 5_000_000
)

// cardRecord is one parsed feed line.
type cardRecord struct {
	id    string
	name  string
	price decimal.Decimal
	stock int
}

// candidate accumulates a card's appearances across feeds.
type candidate struct {
	record cardRecord
	// seenIn has bit i set when feed i carried the card.
	seenIn uint
	// stock sums the per-feed quantities of every appearance.
	stock int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing cardbaseN.gz feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("card ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("card ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(dataDir, fmt.Sprintf("cardbase%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting cross-verified cards")

	cards, err := collectVerifiedCards(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "collect verified cards")
	}

	slog.Info("verified cards", slog.Int("count", len(cards)))

	if len(cards) == 0 {
		slog.Info("no cards to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCards(ctx, pool, cards); err != nil {
		return errors.Wrap(err, "write cards to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter of card ids per feed,
// concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFeed(ctx, path, func(rec cardRecord) {
			filter.AddString(rec.id)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("cards", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_cards", count),
		)

		filters[idx] = filter
		return nil
	}
}

// collectVerifiedCards re-streams each feed and keeps cards whose id also
// appears in at least one other feed's bloom filter. Stock from all
// verified appearances is summed.
func collectVerifiedCards(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]candidate, error) {
	perFeed := make([]map[string]candidate, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(collectCandidatesInFeed(ctx, i, f, filters, perFeed))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]candidate)
	for _, feedCandidates := range perFeed {
		for id, c := range feedCandidates {
			m, ok := merged[id]
			if !ok {
				merged[id] = c
				continue
			}
			m.seenIn |= c.seenIn
			m.stock += c.stock
			merged[id] = m
		}
	}

	verified := make([]candidate, 0, len(merged))
	for _, c := range merged {
		if bits.OnesCount(c.seenIn) >= 2 {
			verified = append(verified, c)
		}
	}

	return verified, nil
}

func collectCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	perFeed []map[string]candidate,
) func() error {
	return func() error {
		candidates := make(map[string]candidate)
		feedBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFeed(ctx, path, func(rec cardRecord) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("cards", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(rec.id) {
					c, ok := candidates[rec.id]
					if !ok {
						c = candidate{record: rec}
					}
					c.seenIn |= feedBit
					c.stock += rec.stock
					candidates[rec.id] = c
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_cards", count),
			slog.Int("candidates", len(candidates)),
		)

		perFeed[idx] = candidates
		return nil
	}
}

// streamGzFeed opens a gzip-compressed feed and calls fn for each parseable
// line. Malformed lines are skipped.
func streamGzFeed(ctx context.Context, path string, fn func(rec cardRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec, ok := parseLine(scanner.Text()); ok {
			fn(rec)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// parseLine parses "id,name,price,stock". Names containing commas are not a
// thing in the feeds.
func parseLine(line string) (cardRecord, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return cardRecord{}, false
	}
	id := strings.TrimSpace(parts[0])
	name := strings.TrimSpace(parts[1])
	if id == "" || name == "" {
		return cardRecord{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil || price.IsNegative() {
		return cardRecord{}, false
	}
	stock, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || stock < 0 {
		return cardRecord{}, false
	}
	return cardRecord{id: id, name: name, price: price, stock: stock}, true
}

// writeCards upserts verified cards into the catalog.
func writeCards(ctx context.Context, pool *pgxpool.Pool, cards []candidate) error {
	slog.Info("writing cards to database", slog.Int("count", len(cards)))

	for i, c := range cards {
		_, err := pool.Exec(ctx, `
			INSERT INTO cards (id, name, price, stock, snapshot)
			VALUES ($1, $2, $3, $4, '{}')
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				updated_at = now()
		`, c.record.id, c.record.name, c.record.price, c.stock)
		if err != nil {
			return errors.Wrapf(err, "upsert card %s", c.record.id)
		}

		if (i+1)%100 == 0 || i+1 == len(cards) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(cards)))
		}
	}

	return nil
}
