// Package routes defines HTTP route constants for the application.
package routes

// API Routes
const (
	// Health probe used by the connectivity monitor
	HealthPath = "/healthz"

	// SSE
	SSEPath = "/sse"

	// Draft store API
	APIDrafts = "/api/drafts"
	APIDraft  = "/api/drafts/{id}"

	// Editor session routes
	EditorDrafts     = "/editor/drafts"
	EditorDraft      = "/editor/drafts/{key}"
	EditorDraftOpen  = "/editor/drafts/{key}/open"
	EditorDraftFlush = "/editor/drafts/{key}/flush"
	EditorDraftRetry = "/editor/drafts/{key}/retry"
)
