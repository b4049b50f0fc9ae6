package llm

import "fmt"

// AIServiceError codes
const (
	ErrCodeNetwork  = "network"
	ErrCodeTimeout  = "timeout"
	ErrCodeProvider = "provider"
	ErrCodeSchema   = "schema"
)

// AIServiceError classifies a failed model call. Network, timeout and
// provider errors are retryable; schema violations are not.
type AIServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *AIServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai service error (%s): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("ai service error (%s): %s", e.Code, e.Message)
}

func (e *AIServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another call could succeed
func (e *AIServiceError) Retryable() bool {
	return e.Code != ErrCodeSchema
}

func newAIServiceError(code, message string, err error) *AIServiceError {
	return &AIServiceError{Code: code, Message: message, Err: err}
}
