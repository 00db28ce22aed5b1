package errors

import (
	"fmt"
	"net/http"

	"github.com/iRail/occupancy-api/logger"
)

type ErrorType string

const (
	MethodNotAllowedError    ErrorType = "METHOD_NOT_ALLOWED"
	MissingFieldsError       ErrorType = "MISSING_FIELDS"
	InvalidOccupancyError    ErrorType = "INVALID_OCCUPANCY"
	InvalidConnectionIDError ErrorType = "INVALID_CONNECTION_ID"
	InvalidStationIDError    ErrorType = "INVALID_STATION_ID"
	InvalidVehicleIDError    ErrorType = "INVALID_VEHICLE_ID"
	InvalidDateError         ErrorType = "INVALID_DATE"
	StoreUnavailableError    ErrorType = "STORE_UNAVAILABLE"
	RateLimitError           ErrorType = "RATE_LIMIT_EXCEEDED"
	ServerError              ErrorType = "SERVER_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the status the error is reported with.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus == 0 {
		return getHTTPStatus(e.Type)
	}
	return e.HTTPStatus
}

// IsValidation reports whether the error is a client input problem. These are
// never retriable: the same payload fails the same way.
func (e *AppError) IsValidation() bool {
	return e.GetHTTPStatus() == http.StatusBadRequest
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// As extracts an *AppError from err. Anything else becomes a generic server error.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, ServerError, "Internal server error")
}

func MethodNotAllowed() *AppError {
	return &AppError{
		Type:       MethodNotAllowedError,
		Message:    "Only post requests are allowed",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
}

func MissingFields(detail string) *AppError {
	return &AppError{
		Type:       MissingFieldsError,
		Message:    "Incorrect post parameters, the occupancy post request must contain the following parameters: connection, from, date, vehicle and occupancy (optionally \"to\" can be given as a parameter).",
		Detail:     detail,
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidOccupancy(value string) *AppError {
	return &AppError{
		Type:       InvalidOccupancyError,
		Message:    "Make sure that the occupancy parameter is one of these URIs: https://api.irail.be/terms/low, https://api.irail.be/terms/medium or https://api.irail.be/terms/high",
		Detail:     fmt.Sprintf("got %q", value),
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidConnectionID(value string) *AppError {
	return &AppError{
		Type:       InvalidConnectionIDError,
		Message:    "Invalid Connection ID",
		Detail:     fmt.Sprintf("got %q", value),
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidStationID(value string) *AppError {
	return &AppError{
		Type:       InvalidStationIDError,
		Message:    "Invalid station ID",
		Detail:     fmt.Sprintf("got %q", value),
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidVehicleID(value string) *AppError {
	return &AppError{
		Type:       InvalidVehicleIDError,
		Message:    "Invalid vehicle ID",
		Detail:     fmt.Sprintf("got %q", value),
		HTTPStatus: http.StatusBadRequest,
	}
}

// InvalidDate reports a rejected date. reason narrows the message down, e.g.
// "month > 12"; an empty reason means the format itself was wrong.
func InvalidDate(value, reason string) *AppError {
	message := "Invalid date"
	if reason != "" {
		message = fmt.Sprintf("Invalid date (%s)", reason)
	}
	return &AppError{
		Type:       InvalidDateError,
		Message:    message,
		Detail:     fmt.Sprintf("got %q", value),
		HTTPStatus: http.StatusBadRequest,
	}
}

func StoreUnavailable(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Feedback store error", "error", err)
	return &AppError{
		Type:       StoreUnavailableError,
		Message:    "Feedback could not be stored",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusServiceUnavailable,
		Raw:        err,
	}
}

func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitError,
		Message:    message,
		Detail:     fmt.Sprintf("Retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case MethodNotAllowedError:
		return http.StatusMethodNotAllowed
	case MissingFieldsError, InvalidOccupancyError, InvalidConnectionIDError,
		InvalidStationIDError, InvalidVehicleIDError, InvalidDateError:
		return http.StatusBadRequest
	case StoreUnavailableError:
		return http.StatusServiceUnavailable
	case RateLimitError:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
