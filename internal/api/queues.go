package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/engine"
	"github.com/oriys/mqs/internal/mqs"
)

type queueHandlers struct {
	engine *engine.QueueEngine
}

func (h *queueHandlers) create(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var cfg mqs.QueueConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, apperr.NewValidation("invalid JSON body: "+err.Error()))
		return
	}

	q, err := h.engine.Create(r.Context(), name, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q.ConfigOutput())
}

func (h *queueHandlers) update(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var cfg mqs.QueueConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, apperr.NewValidation("invalid JSON body: "+err.Error()))
		return
	}

	q, err := h.engine.Update(r.Context(), name, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q.ConfigOutput())
}

func (h *queueHandlers) delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q, err := h.engine.Delete(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q.ConfigOutput())
}

func (h *queueHandlers) describe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	desc, err := h.engine.Describe(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mqs.QueueDescription{
		QueueConfigOutput: desc.Queue.ConfigOutput(),
		Status: mqs.QueueStatus{
			Messages:         desc.TotalMessages,
			VisibleMessages:  desc.VisibleMessages,
			OldestMessageAge: desc.OldestMessageAgeSeconds,
		},
	})
}

func (h *queueHandlers) list(w http.ResponseWriter, r *http.Request) {
	offset, err := parseOptionalInt64(r.URL.Query().Get("offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseOptionalInt64(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	queues, total, err := h.engine.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	outputs := make([]mqs.QueueConfigOutput, 0, len(queues))
	for _, q := range queues {
		outputs = append(outputs, q.ConfigOutput())
	}
	writeJSON(w, http.StatusOK, mqs.QueuesResponse{Queues: outputs, Total: total})
}

func parseOptionalInt64(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, apperr.NewValidation("expected a non-negative integer")
	}
	return &n, nil
}
