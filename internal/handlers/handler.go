package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kairos/internal/importer"
	"kairos/internal/logger"
	"kairos/internal/middleware"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/planner"
	repo "kairos/internal/repository"
	"kairos/internal/service"
	"kairos/internal/state"

	"github.com/go-chi/chi/v5"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	Subscribe(ctx context.Context, accountID string, c repo.Collection, fn repo.SnapshotFunc) (func(), error)
	Watch(ctx context.Context, accountID string, q service.DashboardQuery, fn func(state.View)) (func(), error)

	ListStudents(ctx context.Context, accountID string) ([]student.Student, error)
	GetStudent(ctx context.Context, accountID, id string) (*student.Student, error)
	CreateStudent(ctx context.Context, accountID string, in service.StudentInput) (*student.Student, error)
	UpdateStudent(ctx context.Context, accountID, id string, in service.StudentInput) (*student.Student, error)
	DeleteStudent(ctx context.Context, accountID, id string) error
	DeleteStudentWithTasks(ctx context.Context, accountID, id string) (int, error)
	SickDay(ctx context.Context, accountID, studentID string) (int, error)

	ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error)
	CreateRhythm(ctx context.Context, accountID string, in service.RhythmInput) (*rhythm.Rhythm, error)
	UpdateRhythm(ctx context.Context, accountID, id string, in service.RhythmInput) (*rhythm.Rhythm, error)
	DeleteRhythm(ctx context.Context, accountID, id string) error

	ListTasks(ctx context.Context, accountID string, filter service.TaskFilter) ([]task.Task, error)
	GetTask(ctx context.Context, accountID, id string) (*task.Task, error)
	CreateTask(ctx context.Context, accountID string, in service.TaskInput) (*task.Task, error)
	UpdateTask(ctx context.Context, accountID, id string, options ...task.TaskOption) (*task.Task, error)
	DeleteTask(ctx context.Context, accountID, id string) error
	ToggleTask(ctx context.Context, accountID, id string) (*task.Task, error)
	MoveToToday(ctx context.Context, accountID, id string) (*task.Task, error)

	PreviewImport(ctx context.Context, accountID, text string) (importer.Result, error)
	CommitImport(ctx context.Context, accountID, text string) (service.ImportReport, error)
	SeedDemo(ctx context.Context, accountID string) (service.SeedReport, error)

	Dashboard(ctx context.Context, accountID string, q service.DashboardQuery) (state.View, error)
	Calendar(ctx context.Context, accountID string, q service.DashboardQuery) (planner.Month, error)
	Progress(ctx context.Context, accountID, studentID string) (service.Progress, error)
	PortfolioReport(ctx context.Context, accountID, studentID string) (service.Report, error)
}

type Handler struct {
	service   Service
	heartbeat time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

func NewHandler(svc Service) *Handler {
	return &Handler{service: svc, heartbeat: 25 * time.Second, closing: make(chan struct{})}
}

// CloseStreams завершает открытые потоки /events
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Routes вешает маршруты API; /health проверку аккаунта не проходит
func (h *Handler) Routes(r chi.Router, authenticate, timeout func(http.Handler) http.Handler) {
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		// поток живёт дольше любого таймаута запроса
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.Route("/students", func(r chi.Router) {
				r.Get("/", h.ListStudents)   // GET /students
				r.Post("/", h.CreateStudent) // POST /students

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetStudent)
					r.Put("/", h.UpdateStudent)
					r.Delete("/", h.DeleteStudent)                     // ?confirm=true
					r.Delete("/with-tasks", h.DeleteStudentWithTasks) // ?confirm=true
					r.Post("/sick-day", h.SickDay)                     // ?confirm=true

					r.Get("/dashboard", h.Dashboard)
					r.Get("/calendar", h.Calendar)
					r.Get("/progress", h.Progress)
					r.Post("/report", h.PortfolioReport)
				})
			})

			r.Route("/rhythms", func(r chi.Router) {
				r.Get("/", h.ListRhythms)
				r.Post("/", h.CreateRhythm)
				r.Put("/{id}", h.UpdateRhythm)
				r.Delete("/{id}", h.DeleteRhythm) // ?confirm=true
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks) // GET /tasks?student=&status=&rhythm=
				r.Post("/", h.CreateTask)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetTask)
					r.Put("/", h.UpdateTask)
					r.Delete("/", h.DeleteTask) // ?confirm=true
					r.Post("/toggle", h.ToggleTask)
					r.Post("/today", h.MoveToToday)
				})
			})

			r.Post("/import/preview", h.PreviewImport)
			r.Post("/import", h.CommitImport)
			r.Post("/seed", h.SeedDemo)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	status, code := "ok", http.StatusOK
	if err := h.service.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Хранилище недоступно", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	responseWithJSON(w, code,
		toPayload("service", "kairos"),
		toPayload("status", status),
		toPayload("time", time.Now().UTC()),
	)
}

func account(r *http.Request) string {
	return middleware.AccountID(r.Context())
}
