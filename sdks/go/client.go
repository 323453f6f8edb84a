package mandateauthority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is the mandate authority SDK client. It communicates with a
// mandate authority server's external HTTP interface to issue
// mandates and check/flip an agent's kill switch.
type Client struct {
	serverAddr string
	apiKey     string
	agentID    string
	failMode   string
	timeout    time.Duration
	httpClient *http.Client

	// killStatusCache holds the most recent kill-status lookup per
	// agent ID, so a tight enforcement loop doesn't hammer the server
	// on every action attempt.
	killStatusCache sync.Map
	cacheTTL        time.Duration

	logger *slog.Logger
}

type killStatusCacheEntry struct {
	status    *KillStatus
	expiresAt time.Time
}

// NewClient creates a new mandate authority SDK client. It reads
// configuration from MANDATE_AUTHORITY_* environment variables by
// default; options override those defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr: os.Getenv("MANDATE_AUTHORITY_SERVER_ADDR"),
		apiKey:     os.Getenv("MANDATE_AUTHORITY_API_KEY"),
		agentID:    os.Getenv("MANDATE_AUTHORITY_AGENT_ID"),
		failMode:   envOrDefault("MANDATE_AUTHORITY_FAIL_MODE", "closed"),
		timeout:    parseDurationEnv("MANDATE_AUTHORITY_TIMEOUT", 5*time.Second),
		cacheTTL:   parseDurationEnv("MANDATE_AUTHORITY_CACHE_TTL", 2*time.Second),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c
}

// IssueMandate requests a new mandate for this client's agent over the
// given sanitised context, mirroring POST /mandates/issue. On
// AGENT_KILLED it returns an *AgentKilledError; on server unreachable
// it returns *ServerUnreachableError unconditionally — unlike
// CheckKillStatus's fail-mode behavior, there is no safe default
// reading for "what authority would the server have granted," so
// issuance never fails open.
func (c *Client) IssueMandate(ctx context.Context, sanitizedContext map[string]string) (*Mandate, error) {
	var resp Mandate
	err := c.doRequest(ctx, http.MethodPost, "/mandates/issue", map[string]any{
		"context": sanitizedContext,
	}, &resp)
	if err != nil {
		if isConnectionError(err) {
			return nil, &ServerUnreachableError{Cause: err}
		}
		var clientErr *ClientError
		if errors.As(err, &clientErr) && clientErr.Code == "AGENT_KILLED" {
			return nil, &AgentKilledError{Reason: clientErr.Error()}
		}
		return nil, err
	}
	return &resp, nil
}

// GetMandate fetches a previously issued mandate by ID, mirroring GET
// /mandates/{id}. The server enforces that only the mandate's own
// agent may read it back.
func (c *Client) GetMandate(ctx context.Context, mandateID string) (*Mandate, error) {
	var resp Mandate
	path := fmt.Sprintf("/mandates/%s", mandateID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckKillStatus reports whether agentID is currently killed,
// mirroring GET /agents/{id}/kill-status. Results are cached for
// WithCacheTTL to keep a tight enforcement loop from hammering the
// server. On server unreachable, the fail mode decides the answer:
// "closed" (the default) reports killed=true so a caller's own
// enforcement loop halts rather than risks running an unaccountable
// action; "open" reports the last known (or, with no prior lookup,
// not-killed) status.
func (c *Client) CheckKillStatus(ctx context.Context, agentID string) (*KillStatus, error) {
	if cached, ok := c.getCachedKillStatus(agentID); ok {
		return cached, nil
	}

	var resp KillStatus
	path := fmt.Sprintf("/agents/%s/kill-status", agentID)
	err := c.doRequest(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if !isConnectionError(err) {
			return nil, err
		}
		c.logger.Warn("mandate authority server unreachable checking kill status",
			"server_addr", c.serverAddr,
			"agent_id", agentID,
			"fail_mode", c.failMode,
			"error", err,
		)
		if c.failMode == "open" {
			if last, ok := c.killStatusCache.Load(agentID); ok {
				return last.(*killStatusCacheEntry).status, nil
			}
			return &KillStatus{Killed: false}, nil
		}
		return &KillStatus{Killed: true, Reason: "server unreachable, failing closed"}, nil
	}

	c.putCachedKillStatus(agentID, &resp)
	return &resp, nil
}

// Kill flips this client's own agent's kill switch, mirroring POST
// /agents/{id}/kill. The server rejects killing any agent other than
// the bearer-authenticated caller.
func (c *Client) Kill(ctx context.Context, reason string) error {
	if c.agentID == "" {
		return fmt.Errorf("mandateauthority: agent ID not set (WithAgentID or MANDATE_AUTHORITY_AGENT_ID)")
	}
	path := fmt.Sprintf("/agents/%s/kill", c.agentID)
	if err := c.doRequest(ctx, http.MethodPost, path, map[string]string{"reason": reason}, nil); err != nil {
		return err
	}
	c.killStatusCache.Delete(c.agentID)
	return nil
}

// Resurrect clears this client's own agent's kill switch, mirroring
// POST /agents/{id}/resurrect.
func (c *Client) Resurrect(ctx context.Context) error {
	if c.agentID == "" {
		return fmt.Errorf("mandateauthority: agent ID not set (WithAgentID or MANDATE_AUTHORITY_AGENT_ID)")
	}
	path := fmt.Sprintf("/agents/%s/resurrect", c.agentID)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return err
	}
	c.killStatusCache.Delete(c.agentID)
	return nil
}

func (c *Client) getCachedKillStatus(agentID string) (*KillStatus, bool) {
	val, ok := c.killStatusCache.Load(agentID)
	if !ok {
		return nil, false
	}
	entry := val.(*killStatusCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.killStatusCache.Delete(agentID)
		return nil, false
	}
	return entry.status, true
}

func (c *Client) putCachedKillStatus(agentID string, status *KillStatus) {
	c.killStatusCache.Store(agentID, &killStatusCacheEntry{
		status:    status,
		expiresAt: time.Now().Add(c.cacheTTL),
	})
}

// doRequest performs an HTTP request to the mandate authority server.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	url := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var envelope struct {
			StatusCode int    `json:"statusCode"`
			Error      string `json:"error"`
			Message    string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &envelope)
		return &ClientError{
			Code:       envelope.Error,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("%s", envelope.Message),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// isConnectionError determines if an error is a connection-level error
// (server unreachable, connection refused, timeout) as opposed to an
// HTTP-level error response the server itself produced.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	return !errors.As(err, &clientErr)
}

// Helper functions for env var parsing.

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}
