package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
	"github.com/mandate-authority/mandate-authority/internal/domain/audit"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

// auditHandlers implements spec §6's /audit routes. All
// bearer-protected: the authenticated agent's ID always overrides any
// agentId named in a submitted entry or a query parameter (spec §4.8).
type auditHandlers struct {
	audit *service.AuditService
}

type auditEntryRequest struct {
	ActionID       string            `json:"actionId"`
	ActionType     string            `json:"actionType"`
	ToolName       string            `json:"toolName"`
	Decision       string            `json:"decision"`
	Reason         string            `json:"reason"`
	EstimatedCost  float64           `json:"estimatedCost"`
	ActualCost     float64           `json:"actualCost"`
	CumulativeCost float64           `json:"cumulativeCost"`
	Context        map[string]string `json:"context"`
	Metadata       map[string]string `json:"metadata"`
}

func (req auditEntryRequest) toEntry(agentID string) audit.Entry {
	return audit.Entry{
		AgentID:        agentID,
		ActionID:       req.ActionID,
		Timestamp:      time.Now().UTC(),
		ActionType:     audit.ActionType(req.ActionType),
		ToolName:       req.ToolName,
		Decision:       audit.Decision(req.Decision),
		Reason:         req.Reason,
		EstimatedCost:  req.EstimatedCost,
		ActualCost:     req.ActualCost,
		CumulativeCost: req.CumulativeCost,
		Context:        req.Context,
		Metadata:       req.Metadata,
	}
}

// handleSubmit handles POST /audit: submits a single entry.
func (h *auditHandlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	caller := agentFromContext(r.Context())

	var req auditEntryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.audit.Record(req.toEntry(caller.AgentID))
	w.WriteHeader(http.StatusAccepted)
}

// handleBulkSubmit handles POST /audit/bulk: submits many entries in
// one request, each still stamped with the caller's own agent ID.
func (h *auditHandlers) handleBulkSubmit(w http.ResponseWriter, r *http.Request) {
	caller := agentFromContext(r.Context())

	var req []auditEntryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for _, e := range req {
		h.audit.Record(e.toEntry(caller.AgentID))
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleQuery handles GET /audit: the caller's own agentId always
// replaces any agentId query parameter, per spec §4.8. The result
// count is capped at audit.MaxQueryLimit regardless of the requested
// limit.
func (h *auditHandlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	caller := agentFromContext(r.Context())
	q := r.URL.Query()

	filter := audit.Filter{
		AgentID:    caller.AgentID,
		Decision:   audit.Decision(q.Get("decision")),
		ActionType: audit.ActionType(q.Get("actionType")),
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, apierr.New(apierr.KindInvalidInput, "invalid 'from' timestamp"))
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, apierr.New(apierr.KindInvalidInput, "invalid 'to' timestamp"))
			return
		}
		filter.To = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, apierr.New(apierr.KindInvalidInput, "limit must be a positive integer"))
			return
		}
		if n > audit.MaxQueryLimit {
			n = audit.MaxQueryLimit
		}
		filter.Limit = n
	}

	entries, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
