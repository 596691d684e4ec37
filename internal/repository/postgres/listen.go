package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kairos/internal/logger"
	repo "kairos/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// канал, в который пишут триггеры из миграции 000002
const changesChannel = "kairos_changes"

type change struct {
	Account    string `json:"account"`
	Collection string `json:"collection"`
}

func (s *Storage) snapshot(ctx context.Context, accountID string, c repo.Collection) (repo.Snapshot, error) {
	snap := repo.Snapshot{Collection: c}
	var err error
	switch c {
	case repo.CollectionProfiles:
		snap.Students, err = s.ListStudents(ctx, accountID)
	case repo.CollectionRhythms:
		snap.Rhythms, err = s.ListRhythms(ctx, accountID)
	case repo.CollectionAssignments:
		snap.Tasks, err = s.ListTasks(ctx, accountID)
	}
	return snap, err
}

func (s *Storage) Subscribe(ctx context.Context, accountID string, c repo.Collection, fn repo.SnapshotFunc) (func(), error) {
	return s.hub.Subscribe(ctx, accountID, c, fn, s.snapshot)
}

// listen держит выделенное соединение с LISTEN и переподключается с экспоненциальной задержкой
func (s *Storage) listen(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = time.Second * 30
	b.MaxElapsedTime = 0

	for ctx.Err() == nil {
		err := s.listenOnce(ctx, b)
		if ctx.Err() != nil {
			return
		}

		wait := b.NextBackOff()
		logger.Warn("Repository: Соединение LISTEN потеряно, переподключение",
			zap.Error(err),
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Storage) listenOnce(ctx context.Context, b backoff.BackOff) error {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("получение соединения: %w", err)
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		return fmt.Errorf("LISTEN: %w", err)
	}
	b.Reset()
	logger.Info("Repository: Подписка на изменения PostgreSQL активна")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("ожидание уведомления: %w", err)
		}

		var ev change
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			logger.Warn("Repository: Некорректное уведомление", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		c, err := repo.ParseCollection(ev.Collection)
		if err != nil {
			logger.Warn("Repository: Некорректное уведомление", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}

		if err := s.hub.Notify(ctx, ev.Account, c, s.snapshot); err != nil {
			logger.Warn("Repository: Не удалось разослать снимок", zap.Error(err))
		}
	}
}
