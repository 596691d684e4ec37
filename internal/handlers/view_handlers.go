package handlers

import (
	"net/http"
	"strconv"
	"time"

	"kairos/internal/logger"
	"kairos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// dashboardQuery читает rhythm, date, year и month; month считается с 1
func dashboardQuery(w http.ResponseWriter, r *http.Request, studentID string) (service.DashboardQuery, bool) {
	query := r.URL.Query()
	q := service.DashboardQuery{
		StudentID: studentID,
		RhythmID:  query.Get("rhythm"),
		Date:      query.Get("date"),
	}

	if raw := query.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 1 {
			badQuery(w, "year", raw)
			return q, false
		}
		q.Year = year
	}
	if raw := query.Get("month"); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			badQuery(w, "month", raw)
			return q, false
		}
		q.Month = time.Month(month)
	}
	if (q.Year == 0) != (q.Month == 0) {
		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "year and month must be given together.")
		return q, false
	}
	return q, true
}

func badQuery(w http.ResponseWriter, name, value string) {
	logger.Warn("HTTP: Неверное значение параметра",
		zap.String("query", name),
		zap.String("value", value))
	responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid value for '"+name+"'.")
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q, ok := dashboardQuery(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	view, err := h.service.Dashboard(r.Context(), account(r), q)
	if err != nil {
		handleError(w, r, err, "dashboard")
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	q, ok := dashboardQuery(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	month, err := h.service.Calendar(r.Context(), account(r), q)
	if err != nil {
		handleError(w, r, err, "calendar")
		return
	}
	respond(w, http.StatusOK, month)
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "progress")
		return
	}
	respond(w, http.StatusOK, progress)
}

func (h *Handler) PortfolioReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := h.service.PortfolioReport(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err, "portfolio_report")
		return
	}
	logger.Info("HTTP_OUT: Отчёт сформирован",
		zap.String("student_id", report.Student.ID),
		zap.Int("completed", len(report.Completed)),
		zap.Duration("ms", time.Since(start)))
	respond(w, http.StatusOK, report)
}
