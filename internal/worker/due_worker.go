package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/task"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const accountFanOut = 4

type Promoter interface {
	Accounts(ctx context.Context) ([]string, error)
	PromoteDueTasks(ctx context.Context, accountID, date string) (int, error)
}

// DueWorker по расписанию переносит задачи банка со сроком на сегодня в список дня.
// Сегодня считается в часовом поясе воркера.
type DueWorker struct {
	promoter Promoter
	cron     *cron.Cron
	loc      *time.Location
	now      func() time.Time

	ctx context.Context
}

// NewDueWorker: schedule в формате cron с секундами, например "0 5 0 * * *"
func NewDueWorker(promoter Promoter, schedule, timezone string) (*DueWorker, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", timezone, err)
	}

	w := &DueWorker{
		promoter: promoter,
		cron:     cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		loc:      loc,
		now:      time.Now,
		ctx:      context.Background(),
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.Check(w.ctx) }); err != nil {
		return nil, fmt.Errorf("расписание %q: %w", schedule, err)
	}
	return w, nil
}

// Start блокируется до отмены ctx и дожидается текущего прохода
func (w *DueWorker) Start(ctx context.Context) {
	w.ctx = ctx
	w.cron.Start()
	logger.Info("Worker: Перенос задач по сроку запущен", zap.String("timezone", w.loc.String()))

	<-ctx.Done()
	logger.Info("Worker: Перенос задач по сроку останавливается")
	<-w.cron.Stop().Done()
}

func (w *DueWorker) Check(ctx context.Context) {
	start := time.Now()
	date := task.FormatDate(w.now().In(w.loc))

	accounts, err := w.promoter.Accounts(ctx)
	if err != nil {
		logger.Warn("Worker: Ошибка получения аккаунтов", zap.Error(err))
		return
	}

	var promoted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountFanOut)
	for _, acc := range accounts {
		g.Go(func() error {
			n, err := w.promoter.PromoteDueTasks(gctx, acc, date)
			if err != nil {
				// сбой одного аккаунта не мешает остальным
				failed.Add(1)
				logger.Warn("Worker: Ошибка переноса задач", zap.String("account_id", acc), zap.Error(err))
				return nil
			}
			promoted.Add(int64(n))
			return nil
		})
	}
	g.Wait()

	logger.Info(
		"Worker: Завершение переноса задач",
		zap.String("date", date),
		zap.Int("accounts", len(accounts)),
		zap.Int64("promoted", promoted.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("ms", time.Since(start)),
	)
}
