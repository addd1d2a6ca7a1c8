package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"

	// Data errors (recovered locally, never fatal)
	ErrCodeBankLoadFailed      = "bank_load_failed"
	ErrCodeBlueprintLoadFailed = "blueprint_load_failed"
	ErrCodeImportFailed        = "import_failed"
	ErrCodeExportFailed        = "export_failed"

	// Pool conditions
	ErrCodeEmptyPool       = "empty_pool"
	ErrCodeUnknownPoolMode = "unknown_pool_mode"

	// Question lookup
	ErrCodeQuestionNotFound = "question_not_found"

	// Exam lifecycle (contract violations, safe for callers to ignore)
	ErrCodeInvalidState = "invalid_state"
	ErrCodeNoActiveExam = "no_active_exam"
	ErrCodeNoReport     = "no_report"

	// WebSocket errors
	ErrCodeConnectionError = "connection_error"

	// Server errors
	ErrCodeInternalError = "internal_error"
)
