// Package auth implements credential verification with store-backed
// bruteforce protection per (account, source address) pair.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/pushrelay/internal/common"
	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/protocol"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"
)

// Service authenticates relay clients. Every call works on its own store
// connection; the only state shared between sessions lives in the database.
type Service struct {
	connector     store.Opener
	repos         repomanager.RepositoryManager
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	logger        logging.Logger
	now           func() time.Time
}

func NewService(connector store.Opener, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Service {
	return &Service{
		connector:     connector,
		repos:         repos,
		maxAttempts:   cfg.BruteforceMaxAttempts,
		window:        cfg.BruteforceWindow,
		blockDuration: cfg.BruteforceBlockDuration,
		logger:        logger.With("module", "auth"),
		now:           time.Now,
	}
}

// Authenticate verifies the secret for the identifier, tracking failures per
// (account, source address). It returns (false, nil) uniformly for an
// unknown account, a blocked pair, and a wrong secret, so the caller leaks
// nothing beyond "not authenticated". A non-nil error always means the
// store failed, not the credentials.
//
// The whole check-and-update runs in one transaction with the pair's row
// locked, so concurrent failed attempts cannot slip past the threshold.
func (s *Service) Authenticate(ctx context.Context, identifier, secret, sourceAddr string) (bool, error) {
	db, err := s.connector.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("store open: %w", err)
	}
	defer db.Close()

	account, err := s.repos.Accounts(db).GetActiveByIdentifier(ctx, identifier)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now().Unix()

	authenticated := false
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		bf := s.repos.Bruteforce(tx)

		if err := bf.Sweep(ctx, now, int64(s.window.Seconds())); err != nil {
			return err
		}

		rec, err := bf.GetForUpdate(ctx, account.ID, sourceAddr)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if rec != nil && rec.BlockedUntil != 0 {
			// Blocked pairs are rejected before any hash work.
			s.logger.Info(ctx, "access denied (bruteforce protection)",
				"identifier", identifier, "addr", sourceAddr)
			return nil
		}

		hash, err := s.repos.Credentials(tx).GetHash(ctx, account.ID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil {
			authenticated = true
			return nil
		}

		count, err := bf.RecordFailure(ctx, account.ID, sourceAddr, now)
		if err != nil {
			return err
		}
		if count >= s.maxAttempts {
			until := now + int64(s.blockDuration.Seconds())
			if err := bf.Block(ctx, account.ID, sourceAddr, until); err != nil {
				return err
			}
			s.logger.Info(ctx, "blocking (bruteforce protection)",
				"identifier", identifier, "addr", sourceAddr, "until", until)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return authenticated, nil
}

// ACL returns the capabilities of the account behind identifier. A vanished
// account yields an empty set, not an error.
func (s *Service) ACL(ctx context.Context, identifier string) ([]protocol.Capability, error) {
	db, err := s.connector.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	defer db.Close()

	account, err := s.repos.Accounts(db).GetActiveByIdentifier(ctx, identifier)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.repos.ACL(db).List(ctx, account.ID)
}
