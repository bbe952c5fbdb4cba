package types

// AgentError is a typed error for hard failures crossing package
// boundaries. Domain-level negatives (policy rejections, failed
// verifications) are returned as structured results instead.
type AgentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AgentError) Error() string { return e.Message }

// Common error codes
const (
	ErrNotFound          = "NOT_FOUND"
	ErrConflict          = "CONFLICT"
	ErrUnsupportedChain  = "UNSUPPORTED_CHAIN"
	ErrUnsupportedAction = "UNSUPPORTED_ACTION"
	ErrNotImplemented    = "NOT_IMPLEMENTED"
	ErrVerificationFail  = "VERIFICATION_FAILED"
	ErrExecutionFail     = "EXECUTION_FAILED"
	ErrNetworkError      = "NETWORK_ERROR"
	ErrConfigError       = "CONFIG_ERROR"
	ErrInvalidParams     = "INVALID_PARAMS"
)

// NewAgentError builds a typed error with the given code.
func NewAgentError(code, message string) *AgentError {
	return &AgentError{Code: code, Message: message}
}
