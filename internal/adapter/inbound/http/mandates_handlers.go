package http

import (
	"net/http"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// mandateHandlers implements spec §6's /mandates routes. Both are
// bearer-protected: issuance derives the agent from the bearer token
// (never the payload, per spec §6), and GET is owner-only.
type mandateHandlers struct {
	issuance *service.IssuanceService
	mandates *service.MandateService
}

type issueMandateRequest struct {
	Context map[string]string `json:"context"`
}

type issueMandateResponse struct {
	MandateID          string `json:"mandateId"`
	EffectiveAuthority any    `json:"effectiveAuthority"`
	ExpiresAt          string `json:"expiresAt"`
}

// handleIssue handles POST /mandates/issue.
func (h *mandateHandlers) handleIssue(w http.ResponseWriter, r *http.Request) {
	caller := agentFromContext(r.Context())

	var req issueMandateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.issuance.Issue(r.Context(), caller.AgentID, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueMandateResponse{
		MandateID:          m.MandateID,
		EffectiveAuthority: m.Authority,
		ExpiresAt:          m.ExpiresAt.Format(timeFormat),
	})
}

// handleGet handles GET /mandates/{id}: owner-only, per spec §6 — the
// bearer-authenticated agent must be the mandate's own AgentID.
func (h *mandateHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	caller := agentFromContext(r.Context())

	m, err := h.mandates.FindOne(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if m.AgentID != caller.AgentID {
		writeError(w, apierr.New(apierr.KindForbidden, "mandate belongs to a different agent"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
