// Package http provides the inbound HTTP transport for the mandate
// authority service: the full endpoint table spec §6 defines, mounted
// on a single net/http.ServeMux with per-route auth exactly as that
// table specifies (agent/policy/rule CRUD are open; kill, resurrect,
// mandate issuance/lookup, and audit require a bearer sk- key).
//
// Grounded on the teacher's HTTPTransport: same functional-options
// construction, same layered middleware chain (request ID, real IP,
// metrics) wrapping a ServeMux, same graceful-shutdown-via-context
// Start/Stop shape. The MCP-specific JSON-RPC framing, SSE session
// registry, and DNS-rebinding/admin-UI concerns that package carried
// have no analogue here and are not reproduced; see DESIGN.md.
package http
