// Package store opens short-lived database handles for the credential
// store. Every unit of work gets its own connection and closes it when
// done; nothing is pooled across sessions.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Opener yields a database handle for one unit of work. The caller owns the
// handle and closes it when the unit of work is done.
type Opener interface {
	Open(ctx context.Context) (*sql.DB, error)
}

type Connector struct {
	dsn     string
	retries int
	delay   time.Duration
	logger  logging.Logger
}

func NewConnector(dsn string, retries int, delay time.Duration, logger logging.Logger) *Connector {
	return &Connector{
		dsn:     dsn,
		retries: retries,
		delay:   delay,
		logger:  logger.With("module", "store"),
	}
}

func (c *Connector) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.dsn)
	if err != nil {
		return nil, err
	}
	// One physical connection per unit of work.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Open establishes a connection for one unit of work. No retry happens here;
// a request either gets its connection or fails.
func (c *Connector) Open(ctx context.Context) (*sql.DB, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithRetry establishes the initial connection at startup, retrying a
// fixed number of times with a fixed delay before giving up.
func (c *Connector) OpenWithRetry(ctx context.Context) (*sql.DB, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	currentTry := 0
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}

		if currentTry >= c.retries {
			_ = db.Close()
			return nil, err
		}
		currentTry++

		c.logger.Warn(ctx, "not able to connect to the database, waiting before retrying",
			"attempt", currentTry, "retries", c.retries, "error", err)

		t := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			_ = db.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
