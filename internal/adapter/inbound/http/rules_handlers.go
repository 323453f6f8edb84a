package http

import (
	"net/http"

	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// ruleHandlers implements spec §6's /rules routes. Open (no bearer
// auth), same rationale as policyHandlers.
type ruleHandlers struct {
	rules *service.RuleAdminService
}

type ruleRequest struct {
	Conditions []policy.Condition `json:"conditions"`
	MatchMode  policy.MatchMode   `json:"matchMode"`
	AgentIDs   []string           `json:"agentIds"`
	PolicyID   string             `json:"policyId"`
}

func (h *ruleHandlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.rules.Create(r.Context(), policy.Rule{
		Conditions: req.Conditions,
		MatchMode:  req.MatchMode,
		AgentIDs:   req.AgentIDs,
		PolicyID:   req.PolicyID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ruleHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		list []*policy.Rule
		err  error
	)
	if r.URL.Query().Get("active") == "true" {
		list, err = h.rules.ListActive(r.Context())
	} else {
		list, err = h.rules.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ruleHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleUpdate handles PUT /rules/{id}: deactivates the previous
// version and inserts version+1, per spec §6.
func (h *ruleHandlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ruleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.rules.Update(r.Context(), id, policy.Rule{
		Conditions: req.Conditions,
		MatchMode:  req.MatchMode,
		AgentIDs:   req.AgentIDs,
		PolicyID:   req.PolicyID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ruleHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
