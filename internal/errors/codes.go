// Package errors provides structured error handling for the simulation
// service. Every failure that crosses a component boundary carries a
// machine-readable code that transports map to a wire status.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument indicates bad input shape or range, such as a
	// starting stress outside [0,100].
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeUnknownLocation indicates a place name the gazetteer cannot resolve.
	CodeUnknownLocation Code = "UNKNOWN_LOCATION"

	// CodeNotFound indicates no simulation exists for the given identifier.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidState indicates an operation that is not legal in the
	// session's current status, such as stepping a completed simulation.
	CodeInvalidState Code = "INVALID_STATE"

	// CodeProviderFailure indicates a Geography/Knowledge/Decision provider
	// call errored or returned unusable data.
	CodeProviderFailure Code = "PROVIDER_FAILURE"

	// CodeInternal represents an unexpected internal error.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeUnknownLocation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeProviderFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
