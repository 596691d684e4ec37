package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kairos/internal/logger"
	"kairos/internal/models/task"
	"kairos/internal/planner"
	repo "kairos/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// здесь происходит проверка ошибок бизнес-логики

type TaskInput struct {
	Title     string
	Subject   task.Subject
	Type      task.Type
	Duration  string
	StudentID string
	DueDate   *string
}

type TaskFilter struct {
	StudentID string
	Status    task.Status
	RhythmID  string
}

func validDate(field string, date *string) error {
	if date == nil || *date == "" {
		return nil
	}
	if _, _, _, ok := task.ParseDate(*date); !ok {
		return NewValidationError(field, "expected YYYY-MM-DD")
	}
	return nil
}

func (s *PlannerService) ListTasks(ctx context.Context, accountID string, filter TaskFilter) ([]task.Task, error) {
	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	if filter.StudentID != "" {
		tasks = planner.ForStudent(tasks, filter.StudentID)
	}
	if filter.Status != "" {
		tasks = planner.WithStatus(tasks, filter.Status)
	}
	if filter.RhythmID != "" {
		rhythms, err := s.store.ListRhythms(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("получение ритмов: %w", err)
		}
		tasks = planner.FilterByRhythm(tasks, filter.RhythmID, rhythms, planner.DefaultRhythmSubjects)
	}
	return tasks, nil
}

func (s *PlannerService) GetTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, accountID, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

// CreateTask всегда кладёт задачу в банк
func (s *PlannerService) CreateTask(ctx context.Context, accountID string, in TaskInput) (*task.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError("title", "must not be empty")
	}
	if in.Type != "" && !in.Type.Valid() {
		return nil, NewValidationError("type", fmt.Sprintf("unknown type %q", in.Type))
	}
	if err := validDate("dueDate", in.DueDate); err != nil {
		return nil, err
	}
	if err := s.knownStudent(ctx, accountID, in.StudentID); err != nil {
		return nil, err
	}

	t := &task.Task{
		Subject:   task.SubjectUncategorized,
		Type:      task.TypeLesson,
		Duration:  task.DefaultDuration,
		Status:    task.StatusBank,
		CreatedAt: s.now(),
	}
	t.Apply(
		task.WithTitle(strings.TrimSpace(in.Title)),
		task.WithSubject(in.Subject),
		task.WithType(in.Type),
		task.WithDuration(in.Duration),
		task.WithStudent(in.StudentID),
		task.WithDueDate(in.DueDate),
	)

	if err := s.store.CreateTask(ctx, accountID, t); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}
	logger.Info("Service: Задача добавлена в банк", zap.String("task_id", t.ID), zap.String("student_id", t.StudentID))
	return t, nil
}

// UpdateTask применяет опции и перезаписывает документ целиком
func (s *PlannerService) UpdateTask(ctx context.Context, accountID, id string, options ...task.TaskOption) (*task.Task, error) {
	t, err := s.GetTask(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	owner := t.StudentID
	t.Apply(options...)
	if err := validDate("dueDate", t.DueDate); err != nil {
		return nil, err
	}
	if t.StudentID != owner {
		if err := s.knownStudent(ctx, accountID, t.StudentID); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateTask(ctx, accountID, t); err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

// knownStudent: задача всегда принадлежит существующему ученику
func (s *PlannerService) knownStudent(ctx context.Context, accountID, studentID string) error {
	if _, err := s.store.GetStudent(ctx, accountID, studentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewValidationError("studentId", "unknown student")
		}
		return fmt.Errorf("проверка ученика: %w", err)
	}
	return nil
}

func (s *PlannerService) DeleteTask(ctx context.Context, accountID, id string) error {
	if _, err := s.GetTask(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, accountID, id); err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	return nil
}

// ToggleTask переключает today <-> completed
func (s *PlannerService) ToggleTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	t, err := s.GetTask(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if !t.InWorklist() {
		return nil, NewInvalidTransition(id, string(t.Status), "toggle")
	}
	t.Toggle(s.now())
	if err := s.store.UpdateTask(ctx, accountID, t); err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

// MoveToToday переносит задачу из банка; дата снимается
func (s *PlannerService) MoveToToday(ctx context.Context, accountID, id string) (*task.Task, error) {
	t, err := s.GetTask(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusBank {
		return nil, NewInvalidTransition(id, string(t.Status), "move to today")
	}
	t.MoveToToday()
	if err := s.store.UpdateTask(ctx, accountID, t); err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

// updateAll пишет задачи параллельно; первая ошибка отменяет оставшиеся.
// Уже записанные изменения не откатываются.
func (s *PlannerService) updateAll(ctx context.Context, accountID string, tasks []task.Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeFanOut)
	for i := range tasks {
		t := tasks[i]
		g.Go(func() error {
			if err := s.store.UpdateTask(gctx, accountID, &t); err != nil {
				return fmt.Errorf("обновление задачи %s: %w", t.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SickDay возвращает все today-задачи ученика в банк
func (s *PlannerService) SickDay(ctx context.Context, accountID, studentID string) (int, error) {
	if _, err := s.GetStudent(ctx, accountID, studentID); err != nil {
		return 0, err
	}

	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("получение задач: %w", err)
	}
	pending := planner.WithStatus(planner.ForStudent(tasks, studentID), task.StatusToday)
	for i := range pending {
		pending[i].ReturnToBank()
	}

	if err := s.updateAll(ctx, accountID, pending); err != nil {
		logger.Error("Service: Больничный выполнен частично", err, zap.String("student_id", studentID))
		return 0, err
	}
	logger.Info("Service: Больничный", zap.String("student_id", studentID), zap.Int("tasks", len(pending)))
	return len(pending), nil
}

// PromoteDueTasks переносит задачи банка со сроком date в список дня.
// Перенос идёт как ручной MoveToToday, срок снимается.
func (s *PlannerService) PromoteDueTasks(ctx context.Context, accountID, date string) (int, error) {
	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("получение задач: %w", err)
	}

	due := make([]task.Task, 0)
	for _, t := range planner.WithStatus(tasks, task.StatusBank) {
		if t.DueOn(date) {
			t.MoveToToday()
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	if err := s.updateAll(ctx, accountID, due); err != nil {
		return 0, err
	}
	return len(due), nil
}
