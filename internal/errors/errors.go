// Package errors provides the typed errors returned by the guide's text and
// image backends.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrCookiesExpired  = errors.New("cookies have expired")
	ErrNoCookies       = errors.New("no cookies found")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoContent       = errors.New("no content in response")
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
)

// Fallback details used when a failure carries no message of its own.
const (
	UnknownDetail      = "Unknown error."
	UnknownImageDetail = "Unknown image generation error."
)

// maxBodyLen bounds the response body kept on an error for diagnostics.
const maxBodyLen = 2048

// ErrorCode represents a numeric error code reported by the Gemini Web backend.
type ErrorCode int

// Known Gemini Web error codes
const (
	ErrCodeUnknown            ErrorCode = 0
	ErrCodeUsageLimitExceeded ErrorCode = 1037
	ErrCodeModelInconsistent  ErrorCode = 1050
	ErrCodeModelHeaderInvalid ErrorCode = 1052
	ErrCodeIPBlocked          ErrorCode = 1060
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUsageLimitExceeded:
		return "usage limit exceeded"
	case ErrCodeModelInconsistent:
		return "model inconsistent"
	case ErrCodeModelHeaderInvalid:
		return "model header invalid"
	case ErrCodeIPBlocked:
		return "ip temporarily blocked"
	default:
		return fmt.Sprintf("unknown error code %d", int(c))
	}
}

// BackendError holds the context shared by every backend failure.
type BackendError struct {
	Backend    string
	Operation  string
	Endpoint   string
	HTTPStatus int
	Code       ErrorCode
	Message    string
	Body       string
	Cause      error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	if e.Backend != "" {
		b.WriteString(e.Backend)
		b.WriteString(": ")
	}
	if e.Operation != "" {
		b.WriteString(e.Operation)
		if e.Message != "" || e.Cause != nil {
			b.WriteString(": ")
		}
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.HTTPStatus > 0 {
		fmt.Fprintf(&b, " (status %d)", e.HTTPStatus)
	}
	if e.Cause != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// WithBody attaches a truncated response body for diagnostics.
func (e *BackendError) WithBody(body string) *BackendError {
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	e.Body = body
	return e
}

// NewBackendError wraps a cause with the backend and operation that failed.
func NewBackendError(backend, operation string, cause error) *BackendError {
	return &BackendError{Backend: backend, Operation: operation, Cause: cause}
}

// AuthError represents an authentication failure
type AuthError struct {
	BackendError
}

func (e *AuthError) Error() string {
	if e.Message == "" && e.Cause == nil {
		return "authentication failed: credentials may have expired"
	}
	return "authentication failed: " + e.BackendError.Error()
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{BackendError{Message: message}}
}

// NewAuthErrorWithEndpoint creates an AuthError for a specific endpoint
func NewAuthErrorWithEndpoint(message, endpoint string) *AuthError {
	return &AuthError{BackendError{Message: message, Endpoint: endpoint}}
}

// APIError represents a request that reached the backend and was rejected
type APIError struct {
	BackendError
}

func (e *APIError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.HTTPStatus, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{BackendError{HTTPStatus: statusCode, Endpoint: endpoint, Message: message}}
}

// NewAPIErrorWithBody creates an APIError carrying the response body
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	e := NewAPIError(statusCode, endpoint, message)
	e.WithBody(body)
	return e
}

// NetworkError represents a transport failure before any response arrived
type NetworkError struct {
	BackendError
}

func (e *NetworkError) Error() string {
	return "network error: " + e.BackendError.Error()
}

// NewNetworkErrorWithEndpoint creates a NetworkError for an operation on an endpoint
func NewNetworkErrorWithEndpoint(operation, endpoint string, cause error) *NetworkError {
	return &NetworkError{BackendError{Operation: operation, Endpoint: endpoint, Cause: cause}}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	BackendError
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{BackendError{Message: message}}
}

// UsageLimitError represents a usage limit exceeded error
type UsageLimitError struct {
	BackendError
}

func (e *UsageLimitError) Error() string {
	if e.Message == "" {
		return "usage limit exceeded"
	}
	return fmt.Sprintf("usage limit exceeded: %s", e.Message)
}

// NewUsageLimitError creates a new UsageLimitError
func NewUsageLimitError(message string) *UsageLimitError {
	return &UsageLimitError{BackendError{Message: message, Code: ErrCodeUsageLimitExceeded}}
}

// ModelError represents a model-related error
type ModelError struct {
	BackendError
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error: %s", e.Message)
}

// NewModelError creates a new ModelError
func NewModelError(message string) *ModelError {
	return &ModelError{BackendError{Message: message}}
}

// BlockedError represents content or an address being blocked by the backend
type BlockedError struct {
	BackendError
}

func (e *BlockedError) Error() string {
	if e.Message == "" {
		return "content blocked"
	}
	return fmt.Sprintf("content blocked: %s", e.Message)
}

// NewBlockedError creates a new BlockedError
func NewBlockedError(message string) *BlockedError {
	return &BlockedError{BackendError{Message: message}}
}

// ParseError represents a response parsing error
type ParseError struct {
	BackendError
	Path string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{BackendError: BackendError{Message: message}, Path: path}
}

// DownloadError represents a failure fetching a generated image
type DownloadError struct {
	BackendError
	URL string
}

func (e *DownloadError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("image download failed [%d]: %s", e.HTTPStatus, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("image download failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("image download failed: %s", e.Message)
}

// NewDownloadError creates a new DownloadError
func NewDownloadError(message, url string) *DownloadError {
	return &DownloadError{BackendError: BackendError{Message: message, Endpoint: url}, URL: url}
}

// NewDownloadErrorWithStatus creates a DownloadError for a non-200 response
func NewDownloadErrorWithStatus(url string, status int) *DownloadError {
	e := NewDownloadError("unexpected status", url)
	e.HTTPStatus = status
	return e
}

// NewDownloadNetworkError creates a DownloadError for a transport failure
func NewDownloadNetworkError(url string, cause error) *DownloadError {
	e := NewDownloadError("request failed", url)
	e.Cause = cause
	return e
}

// HandleErrorCode converts a Gemini Web error code into a typed error
func HandleErrorCode(code ErrorCode, endpoint, modelName string) error {
	switch code {
	case ErrCodeUsageLimitExceeded:
		e := NewUsageLimitError(fmt.Sprintf("usage limit of %s has been exceeded, try another model", modelName))
		e.Endpoint = endpoint
		return e
	case ErrCodeModelInconsistent, ErrCodeModelHeaderInvalid:
		e := NewModelError(fmt.Sprintf("%s is not available for this account (%s)", modelName, code))
		e.Code = code
		e.Endpoint = endpoint
		return e
	case ErrCodeIPBlocked:
		e := NewBlockedError("your IP address is temporarily blocked, try again later")
		e.Code = code
		e.Endpoint = endpoint
		return e
	default:
		e := NewAPIError(0, endpoint, fmt.Sprintf("request failed with %s", code))
		e.Code = code
		return e
	}
}

// backendFields returns the shared fields of any typed error in the chain.
func backendFields(err error) *BackendError {
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	var auth *AuthError
	if errors.As(err, &auth) {
		return &auth.BackendError
	}
	var api *APIError
	if errors.As(err, &api) {
		return &api.BackendError
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return &netErr.BackendError
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return &timeout.BackendError
	}
	var usage *UsageLimitError
	if errors.As(err, &usage) {
		return &usage.BackendError
	}
	var model *ModelError
	if errors.As(err, &model) {
		return &model.BackendError
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return &blocked.BackendError
	}
	var parse *ParseError
	if errors.As(err, &parse) {
		return &parse.BackendError
	}
	var download *DownloadError
	if errors.As(err, &download) {
		return &download.BackendError
	}
	return nil
}

// GetHTTPStatus returns the HTTP status recorded on err, or 0.
func GetHTTPStatus(err error) int {
	if be := backendFields(err); be != nil {
		return be.HTTPStatus
	}
	return 0
}

// GetErrorCode returns the backend error code recorded on err.
func GetErrorCode(err error) ErrorCode {
	if be := backendFields(err); be != nil {
		return be.Code
	}
	return ErrCodeUnknown
}

// GetEndpoint returns the endpoint recorded on err.
func GetEndpoint(err error) string {
	if be := backendFields(err); be != nil {
		return be.Endpoint
	}
	return ""
}

// GetResponseBody returns the response body recorded on err.
func GetResponseBody(err error) string {
	if be := backendFields(err); be != nil {
		return be.Body
	}
	return ""
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrCookiesExpired) {
		return true
	}
	status := GetHTTPStatus(err)
	return status == 401 || status == 403
}

// IsRateLimitError reports whether err means the backend refused for quota.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var usage *UsageLimitError
	if errors.As(err, &usage) {
		return true
	}
	return GetHTTPStatus(err) == 429
}

// IsTimeoutError reports whether err is a timeout of any kind.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Detail returns the human readable failure detail shown to the user.
func Detail(err error) string {
	return DetailOr(err, UnknownDetail)
}

// DetailOr returns err's message, or fallback when err carries none.
func DetailOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fallback
	}
	return msg
}
