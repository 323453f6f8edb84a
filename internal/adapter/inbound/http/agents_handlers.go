package http

import (
	"net/http"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// agentHandlers implements spec §6's /agents routes: registration and
// CRUD are open (no bearer auth — an agent has no key to present
// before it is registered); kill, kill-status, and resurrect are
// mounted separately since kill-status is open while kill/resurrect
// require the agent's own bearer key (spec §6 "self-only").
type agentHandlers struct {
	agents *service.AgentService
	kills  *service.KillService
}

// agentDTO is the wire shape for an agent. APIKey is only populated on
// the registration response — it is the one-time raw key and is never
// re-derivable from a stored Agent.
type agentDTO struct {
	AgentID     string            `json:"agentId"`
	DisplayName string            `json:"displayName"`
	Principal   string            `json:"principal"`
	Environment string            `json:"environment"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
	APIKey      string            `json:"apiKey,omitempty"`
}

func toAgentDTO(a *agent.Agent) agentDTO {
	return agentDTO{
		AgentID:     a.AgentID,
		DisplayName: a.DisplayName,
		Principal:   a.Principal,
		Environment: string(a.Environment),
		Status:      string(a.Status),
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt.Format(timeFormat),
		UpdatedAt:   a.UpdatedAt.Format(timeFormat),
	}
}

type registerAgentRequest struct {
	DisplayName string            `json:"displayName"`
	Principal   string            `json:"principal"`
	Environment string            `json:"environment"`
	Metadata    map[string]string `json:"metadata"`
}

// handleRegister handles POST /agents. Not bearer-protected: an agent
// cannot present a key it does not have yet.
func (h *agentHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	registered, err := h.agents.Register(r.Context(), req.DisplayName, req.Principal, agent.Environment(req.Environment), req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := toAgentDTO(registered.Agent)
	dto.APIKey = registered.APIKey
	writeJSON(w, http.StatusCreated, dto)
}

// handleList handles GET /agents.
func (h *agentHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]agentDTO, len(agents))
	for i, a := range agents {
		dtos[i] = toAgentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleGet handles GET /agents/{id}.
func (h *agentHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentDTO(a))
}

type updateAgentRequest struct {
	DisplayName *string           `json:"displayName"`
	Metadata    map[string]string `json:"metadata"`
}

// handleUpdate handles PUT /agents/{id}.
func (h *agentHandlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := h.agents.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateAgentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DisplayName != nil {
		a.DisplayName = *req.DisplayName
	}
	if req.Metadata != nil {
		a.Metadata = req.Metadata
	}

	if err := h.agents.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentDTO(a))
}

// handleDelete handles DELETE /agents/{id}: soft delete via
// status=inactive, per spec §6.
func (h *agentHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := h.agents.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	a.Status = agent.StatusInactive
	if err := h.agents.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type killRequest struct {
	Reason string `json:"reason"`
}

// handleKill handles POST /agents/{id}/kill. Bearer-protected,
// self-only: the authenticated agent may only kill itself.
func (h *agentHandlers) handleKill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	caller := agentFromContext(r.Context())
	if caller.AgentID != id {
		writeError(w, apierr.New(apierr.KindForbidden, "agents may only kill themselves"))
		return
	}

	var req killRequest
	_ = readJSON(r, &req)

	if err := h.kills.Kill(r.Context(), id, req.Reason, caller.AgentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResurrect handles POST /agents/{id}/resurrect. Bearer-protected,
// self-only, same rationale as handleKill.
func (h *agentHandlers) handleResurrect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	caller := agentFromContext(r.Context())
	if caller.AgentID != id {
		writeError(w, apierr.New(apierr.KindForbidden, "agents may only resurrect themselves"))
		return
	}
	if err := h.kills.Resurrect(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type killStatusResponse struct {
	Killed   bool    `json:"killed"`
	KilledAt *string `json:"killedAt,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	KilledBy string  `json:"killedBy,omitempty"`
}

// handleKillStatus handles GET /agents/{id}/kill-status. Not
// bearer-protected (spec §6): any caller may check whether an agent
// is currently killed.
func (h *agentHandlers) handleKillStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	killed, err := h.kills.IsKilled(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !killed {
		writeJSON(w, http.StatusOK, killStatusResponse{Killed: false})
		return
	}
	entry, err := h.kills.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	killedAt := entry.KilledAt.Format(timeFormat)
	writeJSON(w, http.StatusOK, killStatusResponse{
		Killed:   true,
		KilledAt: &killedAt,
		Reason:   entry.Reason,
		KilledBy: entry.KilledBy,
	})
}
