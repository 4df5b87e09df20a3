package refunds

import (
	"fmt"
	"net/http"
)

// Stage identifies where in the pipeline a request failed or last
// progressed. Transitions are strictly forward.
type Stage string

const (
	StageReceived          Stage = "received"
	StageAuthenticated     Stage = "authenticated"
	StageCandidatesFetched Stage = "candidates_fetched"
	StageFiltered          Stage = "filtered"
	StageDryRunReported    Stage = "dry_run_reported"
	StageGenerated         Stage = "generated"
	StageMarked            Stage = "marked"
	StageResponded         Stage = "responded"
)

// ErrorCode is the public error taxonomy.
type ErrorCode string

const (
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	CodeRefundDataError    ErrorCode = "REFUND_DATA_ERROR"
	CodeNoRefundsAvailable ErrorCode = "NO_REFUNDS_AVAILABLE"
	CodeXMLGenerationError ErrorCode = "XML_GENERATION_ERROR"
	CodeServerError        ErrorCode = "SERVER_ERROR"
)

// HTTPStatus maps an error code to its response status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest, CodeConfigurationError, CodeNoRefundsAvailable:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRefundDataError:
		return http.StatusBadGateway
	case CodeXMLGenerationError, CodeServerError:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error is a stage-tagged pipeline failure.
type Error struct {
	Code    ErrorCode
	Stage   Stage
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Code, e.Stage, e.Message, e.cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(stage Stage, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Stage: stage, Message: msg}
}

func wrapError(stage Stage, code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Stage: stage, Message: msg, cause: cause}
}
