package tutor

// Mode labels describe how a reply was produced. They surface in the API
// response's "thoughts" field so the frontend can show the answer path.
const (
	// ModeRAG marks answers grounded in retrieved corpus passages.
	ModeRAG = "Reference Material (RAG)"

	// ModeDirect marks answers generated from model knowledge alone.
	ModeDirect = "Internal Knowledge"

	// ModeBlocked marks turns refused by the scope guard.
	ModeBlocked = "Blocked by Guardrail"

	// ModeEmptyInput marks turns rejected for having no message text.
	ModeEmptyInput = "Empty Input"

	// ModeConfigError marks turns that failed because the model API key
	// is not configured.
	ModeConfigError = "Configuration Check Failed"

	// ModeCallFailed marks turns where the model call itself failed.
	ModeCallFailed = "API Call Failed"

	// ModeSystemError marks turns that hit an internal fault; the reply
	// is still well formed.
	ModeSystemError = "Backend Error"
)
