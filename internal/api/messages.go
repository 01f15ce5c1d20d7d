package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/engine"
)

const (
	minMaxMessages = 1
	maxMaxMessages = 999
	minMaxWait     = 1
	maxMaxWait     = 19
)

type messageHandlers struct {
	engine *engine.MessageEngine
}

func (h *messageHandlers) publish(w http.ResponseWriter, r *http.Request) {
	queueName := r.PathValue("queue")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, apperr.NewTooLarge("request body exceeds the configured limit"))
			return
		}
		writeError(w, r, apperr.Internal(err))
		return
	}

	contentType := r.Header.Get("Content-Type")
	var contentEncoding *string
	if v := r.Header.Get("Content-Encoding"); v != "" {
		contentEncoding = &v
	}
	var traceID *uuid.UUID
	if v := r.Header.Get("X-TRACE-ID"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, apperr.NewValidation("X-TRACE-ID must be a UUID"))
			return
		}
		traceID = &id
	}

	parts, err := engine.PartsFromRequest(body, contentType, contentEncoding, traceID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.engine.Publish(r.Context(), queueName, parts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		writeStatus(w, http.StatusCreated)
		return
	}
	writeStatus(w, http.StatusOK)
}

func (h *messageHandlers) receive(w http.ResponseWriter, r *http.Request) {
	queueName := r.PathValue("queue")

	count, err := parseBoundedInt(r.Header.Get("X-MQS-MAX-MESSAGES"), minMaxMessages, maxMaxMessages, 1)
	if err != nil {
		writeError(w, r, apperr.NewValidation("X-MQS-MAX-MESSAGES must be an integer in [1,999]"))
		return
	}

	var maxWait *time.Duration
	if v := r.Header.Get("X-MQS-MAX-WAIT-TIME"); v != "" {
		seconds, err := parseBoundedInt(v, minMaxWait, maxMaxWait, 0)
		if err != nil {
			writeError(w, r, apperr.NewValidation("X-MQS-MAX-WAIT-TIME must be an integer in [1,19]"))
			return
		}
		d := time.Duration(seconds) * time.Second
		maxWait = &d
	}

	result, err := h.engine.Receive(r.Context(), queueName, count, maxWait)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(result.Messages) == 0 {
		writeStatus(w, http.StatusNoContent)
		return
	}
	writeMessages(w, result.Messages)
}

func (h *messageHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperr.NewValidation("message id must be a UUID"))
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, http.StatusOK)
}

// parseBoundedInt parses v as a decimal integer and checks it falls in
// [min,max]; an empty v yields def without error.
func parseBoundedInt(v string, min, max, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, apperr.NewValidation("value out of range")
	}
	return n, nil
}
