package handlers

import (
	"net/http"

	"kairos/internal/handlers/dto"
	"kairos/internal/logger"
	"kairos/internal/models/student"
	"kairos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func studentInput(req dto.StudentRequest) service.StudentInput {
	return service.StudentInput{
		DisplayName: plainText(req.DisplayName),
		Age:         req.Age,
		Color:       student.Color(req.Color),
	}
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.Context(), account(r))
	if err != nil {
		handleError(w, r, err, "list_students")
		return
	}
	respond(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.GetStudent(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "get_student")
		return
	}
	respond(w, http.StatusOK, st)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req dto.StudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.CreateStudent(r.Context(), account(r), studentInput(req))
	if err != nil {
		handleError(w, r, err, "create_student")
		return
	}
	logger.Info("HTTP_OUT: Ученик создан", zap.String("student_id", st.ID))
	respond(w, http.StatusCreated, st)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req dto.StudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.UpdateStudent(r.Context(), account(r), chi.URLParam(r, "id"), studentInput(req))
	if err != nil {
		handleError(w, r, err, "update_student")
		return
	}
	respond(w, http.StatusOK, st)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.service.DeleteStudent(r.Context(), account(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err, "delete_student")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteStudentWithTasks(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	removed, err := h.service.DeleteStudentWithTasks(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "delete_student_with_tasks")
		return
	}
	respond(w, http.StatusOK, dto.CountResponse{Count: removed})
}

func (h *Handler) SickDay(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	moved, err := h.service.SickDay(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "sick_day")
		return
	}
	respond(w, http.StatusOK, dto.CountResponse{Count: moved})
}
