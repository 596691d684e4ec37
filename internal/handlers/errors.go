package handlers

import (
	"context"
	"errors"
	"net/http"

	"kairos/internal/logger"
	"kairos/internal/middleware"
	"kairos/internal/service"

	"go.uber.org/zap"
)

func handleBusinessError(w http.ResponseWriter, err error) bool {
	businessErr, ok := service.AsBusiness(err)
	if !ok {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeImportInvalidHeader:
		return http.StatusBadRequest
	case service.CodeNoValidRecords:
		return http.StatusUnprocessableEntity
	case service.CodeAlreadySeeded, service.CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// handleError: бизнес-ошибки уходят клиенту как есть, остальное скрывается за 500
func handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, err) {
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("HTTP: Таймаут операции",
			zap.String("operation", operation),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		responseWithError(w, http.StatusGatewayTimeout, "TIMEOUT", "The request took too long to process.")
		return
	}

	logger.Error("HTTP: Ошибка Service", err,
		zap.String("operation", operation),
		zap.String("request_id", middleware.GetRequestID(r.Context())))
	responseWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong. Please try again.")
}
