package mandateauthority

import (
	"net/http"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithServerAddr sets the mandate authority server address. If not
// set, defaults to the MANDATE_AUTHORITY_SERVER_ADDR environment
// variable.
func WithServerAddr(addr string) Option {
	return func(c *Client) {
		c.serverAddr = addr
	}
}

// WithAPIKey sets the API key used as the bearer token against the
// server's agent-authenticated endpoints. If not set, defaults to the
// MANDATE_AUTHORITY_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithAgentID sets the agent ID this client acts as for kill/resurrect
// calls, which are self-only server-side. If not set, defaults to the
// MANDATE_AUTHORITY_AGENT_ID environment variable.
func WithAgentID(agentID string) Option {
	return func(c *Client) {
		c.agentID = agentID
	}
}

// WithTimeout sets the HTTP request timeout. If not set, defaults to 5
// seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithCacheTTL sets how long a kill-status lookup is cached before the
// next call re-queries the server. If not set, defaults to the
// MANDATE_AUTHORITY_CACHE_TTL environment variable or 2 seconds — kept
// short relative to the SDK's mandate-issuance counterpart since a
// kill decision needs to propagate fast (spec P6's bounded-latency
// requirement), not be smoothed over by a client-side cache.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithHTTPClient sets a custom http.Client for making requests. Useful
// for testing, proxying, or custom transport configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}
