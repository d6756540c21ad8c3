// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the dashboard handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	BadIntentError      = 3001 // Client sent a binary frame instead of a JSON intent.
)

// DashboardSubprotocol is the only subprotocol the dashboard socket accepts.
const DashboardSubprotocol = "dashboard"
