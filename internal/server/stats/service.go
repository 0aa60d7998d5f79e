// Package stats records send statistics for successful relays.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/models"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"
)

type Service struct {
	connector store.Opener
	repos     repomanager.RepositoryManager
	logger    logging.Logger
	now       func() time.Time
}

func NewService(connector store.Opener, repos repomanager.RepositoryManager, logger logging.Logger) *Service {
	return &Service{
		connector: connector,
		repos:     repos,
		logger:    logger.With("module", "stats"),
		now:       time.Now,
	}
}

// Record appends one statistic row for a successful relay. Failures are the
// caller's to log; they must never affect the response already owed to the
// client.
func (s *Service) Record(ctx context.Context, identifier, sourceAddr, channel string) error {
	db, err := s.connector.Open(ctx)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer db.Close()

	account, err := s.repos.Accounts(db).GetActiveByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	rec := &models.StatisticRecord{
		AccountID:  account.ID,
		SourceAddr: sourceAddr,
		Channel:    channel,
		Timestamp:  s.now().Unix(),
	}
	return s.repos.Statistics(db).Add(ctx, rec)
}
