package handlers

import (
	"net/http"

	"kairos/internal/handlers/dto"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/service"

	"github.com/go-chi/chi/v5"
)

func rhythmInput(req dto.RhythmRequest) service.RhythmInput {
	return service.RhythmInput{
		Name:  plainText(req.Name),
		Icon:  rhythm.Icon(req.Icon),
		Color: student.Color(req.Color),
	}
}

func (h *Handler) ListRhythms(w http.ResponseWriter, r *http.Request) {
	rhythms, err := h.service.ListRhythms(r.Context(), account(r))
	if err != nil {
		handleError(w, r, err, "list_rhythms")
		return
	}
	respond(w, http.StatusOK, rhythms)
}

func (h *Handler) CreateRhythm(w http.ResponseWriter, r *http.Request) {
	var req dto.RhythmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rh, err := h.service.CreateRhythm(r.Context(), account(r), rhythmInput(req))
	if err != nil {
		handleError(w, r, err, "create_rhythm")
		return
	}
	respond(w, http.StatusCreated, rh)
}

func (h *Handler) UpdateRhythm(w http.ResponseWriter, r *http.Request) {
	var req dto.RhythmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rh, err := h.service.UpdateRhythm(r.Context(), account(r), chi.URLParam(r, "id"), rhythmInput(req))
	if err != nil {
		handleError(w, r, err, "update_rhythm")
		return
	}
	respond(w, http.StatusOK, rh)
}

func (h *Handler) DeleteRhythm(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.service.DeleteRhythm(r.Context(), account(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err, "delete_rhythm")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
