package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

func newRuleTestServer() *Server {
	rules := service.NewRuleAdminService(memory.NewRuleStore())
	return NewServer(WithRuleAdminService(rules))
}

func TestRulesHandlers_CreateListGetUpdateDelete(t *testing.T) {
	srv := newRuleTestServer()
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	createBody, _ := json.Marshal(ruleRequest{
		Conditions: []policy.Condition{{Field: "environment", Operator: policy.OpEquals, Value: "production"}},
		MatchMode:  policy.MatchAll,
		PolicyID:   "policy-budget",
	})
	resp, err := http.Post(ts.URL+"/rules", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST /rules: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created policy.Rule
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	listResp, err := http.Get(ts.URL + "/rules?active=true")
	if err != nil {
		t.Fatalf("GET /rules: %v", err)
	}
	defer listResp.Body.Close()
	var list []*policy.Rule
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one active rule, got %d", len(list))
	}

	updateBody, _ := json.Marshal(ruleRequest{
		Conditions: []policy.Condition{{Field: "environment", Operator: policy.OpEquals, Value: "staging"}},
		MatchMode:  policy.MatchAll,
		PolicyID:   "policy-budget",
	})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/rules/"+created.RuleID, bytes.NewReader(updateBody))
	updateResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	defer updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", updateResp.StatusCode)
	}
	var updated policy.Rule
	if err := json.NewDecoder(updateResp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", updated.Version)
	}

	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/rules/"+created.RuleID, nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}

	afterDelete, err := http.Get(ts.URL + "/rules?active=true")
	if err != nil {
		t.Fatalf("GET /rules: %v", err)
	}
	defer afterDelete.Body.Close()
	var afterList []*policy.Rule
	if err := json.NewDecoder(afterDelete.Body).Decode(&afterList); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(afterList) != 0 {
		t.Fatalf("expected no active rules after delete, got %d", len(afterList))
	}
}
