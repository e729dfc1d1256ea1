package core

import "errors"

// Sentinel errors forming the failure taxonomy. Callers classify with
// errors.Is; wrapping adds operation context.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrConflict       = errors.New("conflict")
	ErrMalformedMove  = errors.New("malformed move")
	ErrIllegalMove    = errors.New("illegal move")
	ErrInvalidRequest = errors.New("invalid request")
	ErrStorage        = errors.New("storage unavailable")
	ErrInternal       = errors.New("internal error")
)

// Wire error codes
const (
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidMove       = "INVALID_MOVE"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeStorageError      = "STORAGE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInvalidContent    = "INVALID_CONTENT_TYPE"
)

// ErrorResponse is the JSON error payload returned by the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
