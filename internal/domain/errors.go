package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateTask = errors.New("duplicate task")
	ErrPayloadFormat = errors.New("payload format")
)

// ErrorCode is the stable code returned to clients in error_detail.
type ErrorCode string

const (
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidType          ErrorCode = "INVALID_TYPE"
	CodeMissingContent       ErrorCode = "MISSING_CONTENT"
	CodeTaskNotFound         ErrorCode = "TASK_NOT_FOUND"
	CodeSHA256Mismatch       ErrorCode = "SHA256_MISMATCH"
	CodeRSADecryptionFailed  ErrorCode = "RSA_DECRYPTION_FAILED"
	CodeAESDecryptionFailed  ErrorCode = "AES_DECRYPTION_FAILED"
	CodeInvalidJSON          ErrorCode = "INVALID_JSON"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeOCRFailure           ErrorCode = "OCR_FAILURE"
	CodeLLMFailure           ErrorCode = "LLM_FAILURE"
	CodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	CodeDocPromptFailed      ErrorCode = "DOC_PROMPT_CONSTRUCTION_FAILED"
	CodeFormPromptFailed     ErrorCode = "FORM_PROMPT_CONSTRUCTION_FAILED"
	CodeFillPromptFailed     ErrorCode = "FILL_PROMPT_CONSTRUCTION_FAILED"
	CodeProcessingError      ErrorCode = "PROCESSING_ERROR"
	CodeCacheClearFailed     ErrorCode = "CACHE_CLEAR_FAILED"
)

// PromptFailureCode returns the construction failure code for a task type.
func PromptFailureCode(t TaskType) ErrorCode {
	switch t {
	case TaskTypeForm:
		return CodeFormPromptFailed
	case TaskTypeFill:
		return CodeFillPromptFailed
	default:
		return CodeDocPromptFailed
	}
}

// TaskError attaches a client-facing code to an underlying error.
type TaskError struct {
	Code ErrorCode
	Err  error
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// NewTaskError wraps err with code.
func NewTaskError(code ErrorCode, err error) *TaskError {
	return &TaskError{Code: code, Err: err}
}

// CodeOf extracts the code carried by err, falling back to def.
func CodeOf(err error, def ErrorCode) ErrorCode {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Code
	}
	return def
}
