package handlers

import (
	"io"
	"net/http"

	"kairos/internal/logger"

	"go.uber.org/zap"
)

// readCSV принимает text/csv или text/plain; при ошибке ответ уже записан
func readCSV(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !checkContentType(r, "text/csv", "text/plain") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "text/csv"),
			zap.String("received", r.Header.Get("Content-Type")))
		responseWithError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be text/csv.")
		return "", false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("HTTP: Ошибка чтения CSV", zap.Error(err))
		responseWithError(w, http.StatusRequestEntityTooLarge, "INVALID_BODY", "CSV file is too large.")
		return "", false
	}
	return string(body), true
}

func (h *Handler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	text, ok := readCSV(w, r)
	if !ok {
		return
	}
	result, err := h.service.PreviewImport(r.Context(), account(r), text)
	if err != nil {
		handleError(w, r, err, "preview_import")
		return
	}
	respond(w, http.StatusOK, result)
}

func (h *Handler) CommitImport(w http.ResponseWriter, r *http.Request) {
	text, ok := readCSV(w, r)
	if !ok {
		return
	}
	report, err := h.service.CommitImport(r.Context(), account(r), text)
	if err != nil {
		handleError(w, r, err, "commit_import")
		return
	}
	logger.Info("HTTP_OUT: Импорт завершён", zap.Int("imported", report.Imported))
	respond(w, http.StatusCreated, report)
}

func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SeedDemo(r.Context(), account(r))
	if err != nil {
		handleError(w, r, err, "seed_demo")
		return
	}
	respond(w, http.StatusCreated, report)
}
