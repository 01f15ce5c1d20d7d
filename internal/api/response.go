package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/logging"
	"github.com/oriys/mqs/internal/mqs"
	"github.com/oriys/mqs/internal/multipart"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Op().Error("encode response body failed", "error", err)
	}
}

func writeStatus(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// writeError maps err (expected to be, or wrap, an *apperr.Error) onto a
// status code and, for 4xx, a JSON {"error": ...} body; 5xx responses
// carry a generic message and the concrete cause is logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.Status()

	if status >= 500 {
		logging.Op().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", appErr.Unwrap())
		writeJSON(w, status, mqs.ErrorResponse{Error: "internal error"})
		return
	}

	logging.Op().Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", appErr.Message)
	writeJSON(w, status, mqs.ErrorResponse{Error: appErr.Message})
}

// setMessageHeaders sets the per-message headers on a single-message or
// multipart-part response.
func setMessageHeaders(h http.Header, m *mqs.Message) {
	h.Set("Content-Type", m.ContentType)
	if m.ContentEncoding != nil {
		h.Set("Content-Encoding", *m.ContentEncoding)
	}
	if m.TraceID != nil {
		h.Set("X-TRACE-ID", m.TraceID.String())
	}
	h.Set("X-MQS-MESSAGE-ID", m.ID.String())
	h.Set("X-MQS-MESSAGE-RECEIVES", strconv.Itoa(int(m.Receives)))
	h.Set("X-MQS-MESSAGE-PUBLISHED-AT", m.CreatedAt.UTC().Format(time.RFC3339))
	h.Set("X-MQS-MESSAGE-VISIBLE-AT", m.VisibleSince.UTC().Format(time.RFC3339))
}

// writeMessages shapes a receive reply: a single message is written as a
// raw body with message headers; more than one is framed as
// multipart/mixed with the same per-part headers.
func writeMessages(w http.ResponseWriter, messages []*mqs.Message) {
	if len(messages) == 1 {
		setMessageHeaders(w.Header(), messages[0])
		w.WriteHeader(http.StatusOK)
		w.Write(messages[0].Payload)
		return
	}

	parts := make([]multipart.Part, 0, len(messages))
	for _, m := range messages {
		h := multipart.NewHeader()
		h.Set("Content-Type", m.ContentType)
		if m.ContentEncoding != nil {
			h.Set("Content-Encoding", *m.ContentEncoding)
		}
		if m.TraceID != nil {
			h.Set("X-TRACE-ID", m.TraceID.String())
		}
		h.Set("X-MQS-MESSAGE-ID", m.ID.String())
		h.Set("X-MQS-MESSAGE-RECEIVES", strconv.Itoa(int(m.Receives)))
		h.Set("X-MQS-MESSAGE-PUBLISHED-AT", m.CreatedAt.UTC().Format(time.RFC3339))
		h.Set("X-MQS-MESSAGE-VISIBLE-AT", m.VisibleSince.UTC().Format(time.RFC3339))
		parts = append(parts, multipart.Part{Header: h, Body: m.Payload})
	}

	boundary, body := multipart.Encode(parts)
	w.Header().Set("Content-Type", `multipart/mixed; boundary="`+boundary+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
