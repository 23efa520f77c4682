package errors

import "fmt"

type ErrorCode int

const (
	// 4xxx - client side
	ErrInvalidInput               ErrorCode = 4000
	ErrInvalidRequestData         ErrorCode = 4001
	ErrUnauthorized               ErrorCode = 4010
	ErrTokenExpired               ErrorCode = 4011
	ErrInvalidTokenFormat         ErrorCode = 4012
	ErrMissingAuthorizationHeader ErrorCode = 4013
	ErrForbidden                  ErrorCode = 4030
	ErrNotFound                   ErrorCode = 4040
	ErrAlreadyExists              ErrorCode = 4090

	// 5xxx - server side
	ErrInternalServer     ErrorCode = 5000
	ErrStorageUnavailable ErrorCode = 5001

	// 6xxx - calendar sync
	ErrCursorExpired      ErrorCode = 6000
	ErrReconnectRequired  ErrorCode = 6001
	ErrSyncInProgress     ErrorCode = 6002
	ErrNoRefreshToken     ErrorCode = 6003
	ErrProviderAPI        ErrorCode = 6004
	ErrSyncDisabled       ErrorCode = 6005
	ErrNotConnected       ErrorCode = 6006
	ErrWebhookUnverified  ErrorCode = 6007
	ErrChannelNotFound    ErrorCode = 6008
)

// AppError is the typed error carried across service boundaries.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so callers can use errors.Is with sentinels.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from an error chain, defaulting to ErrInternalServer.
func CodeOf(err error) ErrorCode {
	if ae, ok := err.(*AppError); ok && ae != nil {
		return ae.Code
	}
	return ErrInternalServer
}
