package http

import (
	"net/http"
	"strconv"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// policyHandlers implements spec §6's /policies routes. Open (no
// bearer auth): policy administration is an operator surface, not an
// agent-facing one.
type policyHandlers struct {
	policies *service.PolicyAdminService
}

type createPolicyRequest struct {
	Name      string          `json:"name"`
	Authority policy.Authority `json:"authority"`
}

func (h *policyHandlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.policies.Create(r.Context(), req.Name, req.Authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *policyHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"
	list, err := h.policies.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *policyHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apierr.New(apierr.KindInvalidInput, "version must be an integer"))
			return
		}
		p, err := h.policies.GetVersion(r.Context(), id, version)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	p, err := h.policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updatePolicyRequest struct {
	Name      string           `json:"name"`
	Authority policy.Authority `json:"authority"`
}

// handleUpdate handles PUT /policies/{id}: inserts a new version
// inside the store's row-locked transaction (spec §5 I1), never
// mutates the version it read.
func (h *policyHandlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updatePolicyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.policies.Update(r.Context(), id, req.Name, req.Authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *policyHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apierr.New(apierr.KindInvalidInput, "version must be an integer"))
			return
		}
		version = parsed
	}
	if err := h.policies.Delete(r.Context(), id, version); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
