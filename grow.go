package lmdbm

// grow.go implements the growth-retry protocol of write-class operations.
//
// Each attempt runs one write transaction. When the engine rejects the
// commit as map-full, the map size is doubled and the transaction is run
// again from scratch, up to maxAttempts attempts. Growth happens only
// between attempts, so maxAttempts attempts perform at most maxAttempts-1
// doublings.

import (
	"context"
	"time"

	"github.com/aalhour/lmdbm/internal/engine"
	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

type grower struct {
	env         engine.Env
	maxAttempts int
	logger      Logger
	stats       Statistics
}

// immediately retries without delay; the bound comes from WithMaxRetries.
var immediately = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })

// run applies op in a write transaction, growing the map on map-full.
// It returns the number of attempts made.
func (g *grower) run(op engine.TxnOp) (int, error) {
	var attempts int

	var backoff = retry.WithMaxRetries(uint64(g.maxAttempts-1), immediately)
	var err = retry.Do(context.Background(), backoff, func(context.Context) error {
		if attempts > 0 {
			if err := g.grow(); err != nil {
				return err
			}
		}
		attempts++
		g.stats.RecordTick(TickerWriteAttempts, 1)

		var err = g.env.Update(op)
		if errors.Is(err, engine.ErrMapFull) {
			g.stats.RecordTick(TickerMapFull, 1)
			g.logger.Debugf(logging.NSGrow+"attempt %d of %d is map-full", attempts, g.maxAttempts)
			return retry.RetryableError(err)
		}
		return err
	})

	if errors.Is(err, engine.ErrMapFull) {
		return attempts, g.exhausted(attempts, err)
	}
	return attempts, err
}

// grow doubles the map size.
func (g *grower) grow() error {
	info, err := g.env.Info()
	if err != nil {
		return errors.WithMessage(err, "reading map size")
	}
	var size = info.MapSize * 2
	if err = g.env.SetMapSize(size); err != nil {
		return errors.WithMessagef(err, "growing map to %s", humanize.IBytes(uint64(size)))
	}
	g.stats.RecordTick(TickerMapGrowths, 1)
	g.logger.Infof(logging.NSGrow+"map size %s -> %s",
		humanize.IBytes(uint64(info.MapSize)), humanize.IBytes(uint64(size)))
	return nil
}

func (g *grower) exhausted(attempts int, last error) error {
	var size int64
	if info, err := g.env.Info(); err == nil {
		size = info.MapSize
	}
	g.stats.RecordTick(TickerGrowthFailures, 1)

	var gerr = &GrowthFailedError{Attempts: attempts, MapSize: size, Err: last}
	g.logger.Fatalf(logging.NSGrow+"gave up after %d attempts at map size %s",
		attempts, humanize.IBytes(uint64(size)))
	return gerr
}
