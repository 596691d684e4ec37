package service

import (
	"context"
	"fmt"

	"kairos/internal/logger"
	"kairos/internal/seed"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SeedReport struct {
	Students int `json:"students"`
	Rhythms  int `json:"rhythms"`
	Tasks    int `json:"tasks"`
}

// SeedDemo заполняет пустой аккаунт демонстрационным месяцем
func (s *PlannerService) SeedDemo(ctx context.Context, accountID string) (SeedReport, error) {
	existing, err := s.store.ListStudents(ctx, accountID)
	if err != nil {
		return SeedReport{}, fmt.Errorf("получение учеников: %w", err)
	}
	if len(existing) > 0 {
		return SeedReport{}, NewBusinessError(CodeAlreadySeeded, "Account already has students.",
			ToDetail("students", len(existing)))
	}

	plan := seed.Generate(s.now(), s.random)

	for i := range plan.Rhythms {
		if err := s.store.CreateRhythm(ctx, accountID, &plan.Rhythms[i]); err != nil {
			return SeedReport{}, fmt.Errorf("создание ритма: %w", err)
		}
	}

	// план ссылается на учеников по индексу
	ids := make(map[string]string, len(plan.Students))
	for i := range plan.Students {
		if err := s.store.CreateStudent(ctx, accountID, &plan.Students[i]); err != nil {
			return SeedReport{}, fmt.Errorf("создание ученика: %w", err)
		}
		ids[fmt.Sprint(i)] = plan.Students[i].ID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeFanOut)
	for i := range plan.Tasks {
		t := &plan.Tasks[i]
		t.StudentID = ids[t.StudentID]
		g.Go(func() error {
			return s.store.CreateTask(gctx, accountID, t)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Service: Демо-данные записаны частично", err)
		return SeedReport{}, fmt.Errorf("создание задач: %w", err)
	}

	report := SeedReport{Students: len(plan.Students), Rhythms: len(plan.Rhythms), Tasks: len(plan.Tasks)}
	logger.Info("Service: Демо-данные созданы", zap.Int("tasks", report.Tasks))
	return report, nil
}
