package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"
	"kairos/internal/seed"

	"go.uber.org/zap"
)

// Store: общий контракт всех хранилищ документов аккаунта
type Store interface {
	repo.Subscriber

	HealthCheck(ctx context.Context) error
	Close()
	Accounts(ctx context.Context) ([]string, error)

	ListStudents(ctx context.Context, accountID string) ([]student.Student, error)
	GetStudent(ctx context.Context, accountID, id string) (*student.Student, error)
	CreateStudent(ctx context.Context, accountID string, st *student.Student) error
	UpdateStudent(ctx context.Context, accountID string, st *student.Student) error
	DeleteStudent(ctx context.Context, accountID, id string) error

	ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error)
	GetRhythm(ctx context.Context, accountID, id string) (*rhythm.Rhythm, error)
	CreateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error
	UpdateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error
	DeleteRhythm(ctx context.Context, accountID, id string) error

	ListTasks(ctx context.Context, accountID string) ([]task.Task, error)
	GetTask(ctx context.Context, accountID, id string) (*task.Task, error)
	CreateTask(ctx context.Context, accountID string, t *task.Task) error
	UpdateTask(ctx context.Context, accountID string, t *task.Task) error
	DeleteTask(ctx context.Context, accountID, id string) error
}

// Summarizer пишет короткий отчёт о выполненных задачах.
// Ошибок не возвращает: при сбое отдаёт запасной текст.
type Summarizer interface {
	Summarize(ctx context.Context, st student.Student, completed []task.Task) string
}

// SeedDemo вызывается из параллельных запросов; функции верхнего уровня math/rand/v2
// потокобезопасны и не требуют сида
type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// параллельных записей на одну массовую операцию
const writeFanOut = 8

type PlannerService struct {
	store   Store
	summary Summarizer
	now     func() time.Time
	random  seed.Source
}

type Option func(*PlannerService)

func WithClock(now func() time.Time) Option {
	return func(s *PlannerService) {
		s.now = now
	}
}

func WithRandom(src seed.Source) Option {
	return func(s *PlannerService) {
		s.random = src
	}
}

func NewPlannerService(store Store, summary Summarizer, options ...Option) *PlannerService {
	s := &PlannerService{
		store:   store,
		summary: summary,
		now:     time.Now,
		random:  globalRandom{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *PlannerService) HealthCheck(ctx context.Context) error {
	if err := s.store.HealthCheck(ctx); err != nil {
		logger.Error("Service: Хранилище недоступно", err)
		return fmt.Errorf("проверка хранилища: %w", err)
	}
	return nil
}

func (s *PlannerService) Accounts(ctx context.Context) ([]string, error) {
	return s.store.Accounts(ctx)
}

func (s *PlannerService) Subscribe(ctx context.Context, accountID string, c repo.Collection, fn repo.SnapshotFunc) (func(), error) {
	return s.store.Subscribe(ctx, accountID, c, fn)
}

// notFound превращает repo.ErrNotFound в бизнес-ошибку, остальное оборачивает
func notFound(err error, resource, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		logger.Info("Service: Документ не найден", zap.String("resource", resource), zap.String("target_id", id))
		return NewNotFound(resource, id)
	}
	return fmt.Errorf("получение %s %s: %w", resource, id, err)
}
