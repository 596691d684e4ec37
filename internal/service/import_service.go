package service

import (
	"context"
	"errors"
	"fmt"

	"kairos/internal/importer"
	"kairos/internal/logger"
	"kairos/internal/models/task"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ImportReport struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

func importError(err error, result importer.Result) error {
	switch {
	case errors.Is(err, importer.ErrMissingColumns), errors.Is(err, importer.ErrEmptyInput):
		return &BusinessError{
			Code:    CodeImportInvalidHeader,
			Message: err.Error(),
			Details: map[string]any{"errors": result.Errors},
		}
	case errors.Is(err, importer.ErrNoValidRecords):
		return &BusinessError{
			Code:    CodeNoValidRecords,
			Message: err.Error(),
			Details: map[string]any{"errors": result.Errors},
		}
	}
	return err
}

// PreviewImport разбирает CSV по текущему списку учеников без записи
func (s *PlannerService) PreviewImport(ctx context.Context, accountID, text string) (importer.Result, error) {
	students, err := s.store.ListStudents(ctx, accountID)
	if err != nil {
		return importer.Result{}, fmt.Errorf("получение учеников: %w", err)
	}

	result, err := importer.Parse(text, students)
	if err != nil {
		logger.Info("Service: CSV отклонён", zap.Error(err))
		return result, importError(err, result)
	}
	return result, nil
}

// CommitImport разбирает CSV заново и записывает валидные строки как задачи банка.
// Ошибка ErrNotParsed здесь невозможна: Parse всегда возвращает записи.
func (s *PlannerService) CommitImport(ctx context.Context, accountID, text string) (ImportReport, error) {
	result, err := s.PreviewImport(ctx, accountID, text)
	if err != nil {
		return ImportReport{Errors: result.Errors}, err
	}

	now := s.now()
	imported, err := importer.Commit(ctx, &result, func(ctx context.Context, records []importer.Record) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(writeFanOut)
		for _, rec := range records {
			t := &task.Task{
				Title:     rec.Title,
				Subject:   rec.Subject,
				Type:      task.TypeLesson,
				Duration:  rec.Duration,
				StudentID: rec.StudentID,
				Status:    task.StatusBank,
				DueDate:   rec.DueDate,
				CreatedAt: now,
			}
			g.Go(func() error {
				if err := s.store.CreateTask(gctx, accountID, t); err != nil {
					return fmt.Errorf("импорт строки %d: %w", rec.Line, err)
				}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return ImportReport{Errors: result.Errors}, importError(err, result)
	}

	logger.Info("Service: Импорт завершён", zap.Int("imported", imported), zap.Int("skipped", len(result.Errors)))
	return ImportReport{Imported: imported, Errors: result.Errors}, nil
}
