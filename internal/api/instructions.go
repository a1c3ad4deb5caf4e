package api

import (
	"net/http"
	"strconv"
	"strings"
)

type instructionRequest struct {
	Instruction string         `json:"instruction"`
	Context     map[string]any `json:"context,omitempty"`
}

func (h *handler) postInstruction(w http.ResponseWriter, r *http.Request) {
	var req instructionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		jsonError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	resp := h.engine.ExecuteInstruction(r.Context(), req.Instruction, req.Context)
	jsonResponse(w, http.StatusOK, resp)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	jsonResponse(w, http.StatusOK, h.engine.ExecutionHistory(limit))
}

func (h *handler) getContext(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.engine.CurrentContext())
}

func (h *handler) getTaskTypes(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.engine.TaskTypes())
}

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"task_types":  len(h.engine.TaskTypes()),
		"memory_size": h.engine.MemorySize(),
	})
}
