package handlers

import (
	"net/http"

	"kairos/internal/handlers/dto"
	"kairos/internal/logger"
	"kairos/internal/models/task"
	"kairos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.TaskFilter{
		StudentID: query.Get("student"),
		RhythmID:  query.Get("rhythm"),
	}
	if raw := query.Get("status"); raw != "" {
		status, err := task.ParseStatus(raw)
		if err != nil {
			logger.Warn("HTTP: Неверное значение параметра",
				zap.String("query", "status"),
				zap.String("value", raw))
			responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "status must be one of bank, today, completed.")
			return
		}
		filter.Status = status
	}

	tasks, err := h.service.ListTasks(r.Context(), account(r), filter)
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}
	respond(w, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTask(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}
	respond(w, http.StatusOK, t)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.CreateTask(r.Context(), account(r), service.TaskInput{
		Title:     plainText(req.Title),
		Subject:   task.Subject(plainText(req.Subject)),
		Type:      task.Type(req.Type),
		Duration:  plainText(req.Duration),
		StudentID: req.StudentID,
		DueDate:   req.DueDate,
	})
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}
	logger.Info("HTTP_OUT: Задача создана", zap.String("task_id", t.ID))
	respond(w, http.StatusCreated, t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	options := make([]task.TaskOption, 0, 6)
	if req.Title != nil {
		options = append(options, task.WithTitle(plainText(*req.Title)))
	}
	if req.Subject != nil {
		options = append(options, task.WithSubject(task.Subject(plainText(*req.Subject))))
	}
	if req.Type != nil {
		options = append(options, task.WithType(task.Type(*req.Type)))
	}
	if req.Duration != nil {
		options = append(options, task.WithDuration(plainText(*req.Duration)))
	}
	if req.StudentID != nil {
		options = append(options, task.WithStudent(*req.StudentID))
	}
	options = append(options, task.WithDueDate(plainPtr(req.DueDate)))

	t, err := h.service.UpdateTask(r.Context(), account(r), chi.URLParam(r, "id"), options...)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}
	respond(w, http.StatusOK, t)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.service.DeleteTask(r.Context(), account(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err, "delete_task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.ToggleTask(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "toggle_task")
		return
	}
	respond(w, http.StatusOK, t)
}

func (h *Handler) MoveToToday(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.MoveToToday(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "move_to_today")
		return
	}
	respond(w, http.StatusOK, t)
}
