// Package cleaner runs the background retention loop: aged statistics and
// deferred payloads are purged, expired session tokens removed, and
// inactive accounts without a live token deleted with all their data.
package cleaner

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"
)

const secondsPerDay = 86400

type Cleaner struct {
	connector   store.Opener
	repos       repomanager.RepositoryManager
	interval    time.Duration
	tick        time.Duration
	statsDays   int
	payloadDays int
	logger      logging.Logger
	now         func() time.Time
}

func New(connector store.Opener, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Cleaner {
	return &Cleaner{
		connector:   connector,
		repos:       repos,
		interval:    cfg.CleanerInterval,
		tick:        cfg.CleanerTick,
		statsDays:   cfg.StatisticsLifeSpanDays,
		payloadDays: cfg.PayloadLifeSpanDays,
		logger:      logger.With("module", "cleaner"),
		now:         time.Now,
	}
}

// Run executes one cleanup pass immediately, then one per interval until
// ctx is cancelled. The interval is slept in short ticks so that shutdown
// latency is bounded by the tick size.
func (c *Cleaner) Run(ctx context.Context) {
	c.pass(ctx)

	for {
		if !c.sleep(ctx) {
			c.logger.Info(ctx, "database cleaning stopped")
			return
		}
		c.pass(ctx)
	}
}

// sleep waits for the configured interval, returning false if ctx was
// cancelled in between.
func (c *Cleaner) sleep(ctx context.Context) bool {
	for elapsed := time.Duration(0); elapsed < c.interval; elapsed += c.tick {
		t := time.NewTimer(c.tick)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
	return true
}

// pass runs the retention sub-steps. Each one commits its own deletions and
// a failure in one never stops the others.
func (c *Cleaner) pass(ctx context.Context) {
	c.logger.Debug(ctx, "cleaning up database")

	if c.statsDays != 0 {
		if err := c.cleanStatistics(ctx); err != nil {
			c.logger.Error(ctx, "not able to clean up statistics data", "error", err)
		}
	}

	if c.payloadDays != 0 {
		if err := c.cleanPayloads(ctx); err != nil {
			c.logger.Error(ctx, "not able to clean up deferred payloads", "error", err)
		}
	}

	if err := c.cleanAccounts(ctx); err != nil {
		c.logger.Error(ctx, "not able to clean up accounts", "error", err)
	}
}

func (c *Cleaner) cleanStatistics(ctx context.Context) error {
	db, err := c.connector.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := c.now().Unix() - int64(c.statsDays)*secondsPerDay
	return c.repos.Statistics(db).DeleteOlderThan(ctx, cutoff)
}

func (c *Cleaner) cleanPayloads(ctx context.Context) error {
	db, err := c.connector.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := c.now().Unix() - int64(c.payloadDays)*secondsPerDay
	return c.repos.Payloads(db).DeleteOlderThan(ctx, cutoff)
}

// cleanAccounts deletes expired session tokens, then purges inactive
// accounts that hold no live token. An inactive account with a live token
// survives untouched.
func (c *Cleaner) cleanAccounts(ctx context.Context) error {
	db, err := c.connector.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	now := c.now().Unix()

	if err := c.repos.Tokens(db).DeleteExpired(ctx, now); err != nil {
		return err
	}

	ids, err := c.repos.Accounts(db).ListInactiveIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		count, err := c.repos.Tokens(db).CountForAccount(ctx, id)
		if err != nil {
			return err
		}
		if count != 0 {
			continue
		}

		c.logger.Debug(ctx, "deleting inactive account", "account_id", id)

		// All dependent rows go before the account row, inside one
		// transaction per account.
		err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := c.repos.Payloads(tx).DeleteForAccount(ctx, id); err != nil {
				return err
			}
			if err := c.repos.Bruteforce(tx).DeleteForAccount(ctx, id); err != nil {
				return err
			}
			if err := c.repos.Statistics(tx).DeleteForAccount(ctx, id); err != nil {
				return err
			}
			if err := c.repos.Credentials(tx).DeleteForAccount(ctx, id); err != nil {
				return err
			}
			if err := c.repos.ACL(tx).DeleteForAccount(ctx, id); err != nil {
				return err
			}
			return c.repos.Accounts(tx).Delete(ctx, id)
		})
		if err != nil {
			return err
		}
	}

	return nil
}
