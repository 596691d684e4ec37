package handlers

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"kairos/internal/logger"
	"kairos/internal/middleware"
	repo "kairos/internal/repository"
	"kairos/internal/state"

	"github.com/gin-contrib/sse"
	"go.uber.org/zap"
)

const eventBuffer = 64

// Events держит SSE-поток: снимки коллекций (event: snapshot) и
// собранный экран ученика (event: view). Медленный клиент теряет события,
// но не блокирует хранилище.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		responseWithError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported.")
		return
	}

	q, ok := dashboardQuery(w, r, r.URL.Query().Get("student"))
	if !ok {
		return
	}

	ctx := r.Context()
	acc := account(r)
	requestID := middleware.GetRequestID(ctx)

	events := make(chan sse.Event, eventBuffer)
	var seq atomic.Int64
	push := func(name string, data any) {
		ev := sse.Event{Event: name, Id: strconv.FormatInt(seq.Add(1), 10), Data: data}
		select {
		case events <- ev:
		default:
			logger.Debug("HTTP: Событие отброшено, клиент не успевает",
				zap.String("request_id", requestID),
				zap.String("event", name))
		}
	}

	unsubscribers := make([]func(), 0, len(repo.Collections)+1)
	defer func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}()

	for _, c := range repo.Collections {
		unsubscribe, err := h.service.Subscribe(ctx, acc, c, func(snap repo.Snapshot) {
			push("snapshot", snap)
		})
		if err != nil {
			handleError(w, r, err, "subscribe")
			return
		}
		unsubscribers = append(unsubscribers, unsubscribe)
	}

	stop, err := h.service.Watch(ctx, acc, q, func(view state.View) {
		push("view", view)
	})
	if err != nil {
		handleError(w, r, err, "watch")
		return
	}
	unsubscribers = append(unsubscribers, stop)

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info("HTTP: Поток событий открыт", zap.String("request_id", requestID), zap.String("account_id", acc))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("HTTP: Поток событий закрыт", zap.String("request_id", requestID))
			return
		case <-h.closing:
			logger.Info("HTTP: Поток событий закрыт сервером", zap.String("request_id", requestID))
			return
		case <-heartbeat.C:
			if err := sse.Encode(w, sse.Event{Event: "ping", Data: time.Now().Unix()}); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if err := sse.Encode(w, ev); err != nil {
				logger.Warn("HTTP: Ошибка записи события", zap.String("request_id", requestID), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
