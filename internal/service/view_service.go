package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/planner"
	repo "kairos/internal/repository"
	"kairos/internal/state"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type DashboardQuery struct {
	StudentID string
	RhythmID  string
	Date      string
	Year      int
	Month     time.Month
}

type Progress struct {
	StudentID  string `json:"studentId"`
	Completion int    `json:"completion"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

type Report struct {
	Student     student.Student `json:"student"`
	Completed   []task.Task     `json:"completed"`
	Summary     string          `json:"summary"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// load читает все три коллекции аккаунта параллельно
func (s *PlannerService) load(ctx context.Context, accountID string) (state.State, error) {
	var students []student.Student
	var rhythms []rhythm.Rhythm
	var tasks []task.Task

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = s.store.ListStudents(gctx, accountID)
		return err
	})
	g.Go(func() (err error) {
		rhythms, err = s.store.ListRhythms(gctx, accountID)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = s.store.ListTasks(gctx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return state.State{}, fmt.Errorf("загрузка данных аккаунта: %w", err)
	}

	return state.New(s.now()).
		ReceiveStudents(students).
		ReceiveRhythms(rhythms).
		ReceiveTasks(tasks), nil
}

func (q DashboardQuery) apply(st state.State) (state.State, error) {
	// без явного ученика остаётся выбранный автоматически первый
	if q.StudentID != "" {
		st = st.SelectStudent(q.StudentID)
		if st.ActiveStudent() == nil {
			return st, NewNotFound("student", q.StudentID)
		}
	}
	st = st.SelectRhythm(q.RhythmID)
	if q.Date != "" {
		if _, _, _, ok := task.ParseDate(q.Date); !ok {
			return st, NewValidationError("date", "expected YYYY-MM-DD")
		}
		st = st.SelectDate(q.Date)
	}
	if q.Year > 0 && q.Month >= time.January && q.Month <= time.December {
		st = st.ShowMonth(q.Year, q.Month)
	}
	return st, nil
}

// Dashboard собирает экран ученика: список дня, банк, процент и календарь
func (s *PlannerService) Dashboard(ctx context.Context, accountID string, q DashboardQuery) (state.View, error) {
	st, err := s.load(ctx, accountID)
	if err != nil {
		return state.View{}, err
	}
	st, err = q.apply(st)
	if err != nil {
		return state.View{}, err
	}
	return st.View(s.now()), nil
}

func (s *PlannerService) Calendar(ctx context.Context, accountID string, q DashboardQuery) (planner.Month, error) {
	view, err := s.Dashboard(ctx, accountID, q)
	if err != nil {
		return planner.Month{}, err
	}
	return view.Calendar, nil
}

func (s *PlannerService) Progress(ctx context.Context, accountID, studentID string) (Progress, error) {
	if _, err := s.GetStudent(ctx, accountID, studentID); err != nil {
		return Progress{}, err
	}
	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return Progress{}, fmt.Errorf("получение задач: %w", err)
	}
	worklist := planner.Worklist(tasks, studentID)
	return Progress{
		StudentID:  studentID,
		Completion: planner.CompletionPercent(tasks, studentID),
		Completed:  len(planner.WithStatus(worklist, task.StatusCompleted)),
		Total:      len(worklist),
	}, nil
}

// PortfolioReport: выполненные задачи ученика и короткий отчёт
func (s *PlannerService) PortfolioReport(ctx context.Context, accountID, studentID string) (Report, error) {
	st, err := s.GetStudent(ctx, accountID, studentID)
	if err != nil {
		return Report{}, err
	}
	tasks, err := s.store.ListTasks(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("получение задач: %w", err)
	}
	completed := planner.WithStatus(planner.ForStudent(tasks, studentID), task.StatusCompleted)

	return Report{
		Student:     *st,
		Completed:   completed,
		Summary:     s.summary.Summarize(ctx, *st, completed),
		GeneratedAt: s.now(),
	}, nil
}

// Watch держит локальное состояние аккаунта по подпискам и отдаёт
// представление после каждого снимка. Обработчик вызывается последовательно.
func (s *PlannerService) Watch(ctx context.Context, accountID string, q DashboardQuery, fn func(state.View)) (func(), error) {
	var mtx sync.Mutex
	current := state.New(s.now())
	received := make(map[repo.Collection]bool, len(repo.Collections))

	onSnapshot := func(snap repo.Snapshot) {
		mtx.Lock()
		defer mtx.Unlock()

		current = current.Apply(snap)
		received[snap.Collection] = true
		if len(received) < len(repo.Collections) {
			return
		}
		st, err := q.apply(current)
		if err != nil {
			logger.Warn("Service: Представление недоступно", zap.Error(err))
			return
		}
		fn(st.View(s.now()))
	}

	unsubscribers := make([]func(), 0, len(repo.Collections))
	stop := func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
	for _, c := range repo.Collections {
		unsubscribe, err := s.store.Subscribe(ctx, accountID, c, onSnapshot)
		if err != nil {
			stop()
			return nil, fmt.Errorf("подписка на %s: %w", c, err)
		}
		unsubscribers = append(unsubscribers, unsubscribe)
	}
	return stop, nil
}
