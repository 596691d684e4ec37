package service

import (
	"context"
	"fmt"
	"strings"

	"kairos/internal/logger"
	"kairos/internal/models/student"
	"kairos/internal/planner"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type StudentInput struct {
	DisplayName string
	Age         *int
	Color       student.Color
}

func (in StudentInput) validate() (student.Color, error) {
	if strings.TrimSpace(in.DisplayName) == "" {
		return "", NewValidationError("display_name", "must not be empty")
	}
	if in.Age != nil && *in.Age < 0 {
		return "", NewValidationError("age", "must not be negative")
	}
	color := in.Color
	if color == "" {
		color = student.ColorGreen
	}
	if !color.Valid() {
		return "", NewValidationError("color", fmt.Sprintf("unknown color %q", in.Color))
	}
	return color, nil
}

func (s *PlannerService) ListStudents(ctx context.Context, accountID string) ([]student.Student, error) {
	students, err := s.store.ListStudents(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("получение учеников: %w", err)
	}
	return students, nil
}

func (s *PlannerService) GetStudent(ctx context.Context, accountID, id string) (*student.Student, error) {
	st, err := s.store.GetStudent(ctx, accountID, id)
	if err != nil {
		return nil, notFound(err, "student", id)
	}
	return st, nil
}

func (s *PlannerService) CreateStudent(ctx context.Context, accountID string, in StudentInput) (*student.Student, error) {
	color, err := in.validate()
	if err != nil {
		return nil, err
	}

	st := &student.Student{
		DisplayName: strings.TrimSpace(in.DisplayName),
		Age:         in.Age,
		Color:       color,
	}
	if err := s.store.CreateStudent(ctx, accountID, st); err != nil {
		return nil, fmt.Errorf("создание ученика: %w", err)
	}
	logger.Info("Service: Добавлен ученик", zap.String("student_id", st.ID))
	return st, nil
}

func (s *PlannerService) UpdateStudent(ctx context.Context, accountID, id string, in StudentInput) (*student.Student, error) {
	color, err := in.validate()
	if err != nil {
		return nil, err
	}

	st, err := s.GetStudent(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	st.DisplayName = strings.TrimSpace(in.DisplayName)
	st.Age = in.Age
	st.Color = color

	if err := s.store.UpdateStudent(ctx, accountID, st); err != nil {
		return nil, notFound(err, "student", id)
	}
	return st, nil
}

// DeleteStudent удаляет только профиль: задачи ученика остаются в хранилище
func (s *PlannerService) DeleteStudent(ctx context.Context, accountID, id string) error {
	if _, err := s.GetStudent(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, accountID, id); err != nil {
		return fmt.Errorf("удаление ученика: %w", err)
	}
	logger.Info("Service: Ученик удалён", zap.String("student_id", id))
	return nil
}

// DeleteStudentWithTasks сначала удаляет задачи ученика, затем профиль.
// При частичном сбое профиль остаётся, и операцию можно повторить.
func (s *PlannerService) DeleteStudentWithTasks(ctx context.Context, accountID, id string) (int, error) {
	if _, err := s.GetStudent(ctx, accountID, id); err != nil {
		return 0, err
	}

	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("получение задач: %w", err)
	}
	owned := planner.ForStudent(tasks, id)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeFanOut)
	for _, t := range owned {
		taskID := t.ID
		g.Go(func() error {
			return s.store.DeleteTask(gctx, accountID, taskID)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Service: Не удалось удалить задачи ученика", err, zap.String("student_id", id))
		return 0, fmt.Errorf("удаление задач ученика: %w", err)
	}

	if err := s.store.DeleteStudent(ctx, accountID, id); err != nil {
		return len(owned), fmt.Errorf("удаление ученика: %w", err)
	}
	logger.Info("Service: Ученик удалён вместе с задачами", zap.String("student_id", id), zap.Int("tasks", len(owned)))
	return len(owned), nil
}
