package weberr

import (
	"net/http"
	"strconv"
	"time"
)

type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

type RequestError struct {
	Err error
}

func (r *RequestError) Error() string { return r.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts, WithResponse(
		&ErrorResponse{Error: msg},
		status,
	))

	return Wrap(e, opts...)
}

func NotFound(err error, opts ...Opt) error {
	return NewError(
		err,
		"the resource could not be found",
		http.StatusNotFound,
		opts...,
	)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewError(
		err,
		"not authorized to access resource",
		http.StatusUnauthorized,
		opts...,
	)
}

func Forbidden(err error, opts ...Opt) error {
	return NewError(
		err,
		"access to the resource is forbidden",
		http.StatusForbidden,
		opts...,
	)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(
		err,
		"the server encountered a problem and could not process your request",
		http.StatusInternalServerError,
		opts...,
	)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(
		err,
		"bad request",
		http.StatusBadRequest,
		opts...,
	)
}

// Invalid is a 400 whose message is the error itself, for errors that are
// safe to show to the client.
func Invalid(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusBadRequest, opts...)
}

func BadGateway(err error, opts ...Opt) error {
	return NewError(
		err,
		"the payment provider could not process the request",
		http.StatusBadGateway,
		opts...,
	)
}

// TooManyRequests rounds retryAfter up to whole seconds and reports it both in
// the body and in the Retry-After header.
func TooManyRequests(err error, retryAfter time.Duration, opts ...Opt) error {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}

	e := &RequestError{Err: err}
	opts = append(opts,
		WithHeaders(map[string]string{"Retry-After": strconv.Itoa(secs)}),
		WithResponse(&ErrorResponse{Error: "too many requests, try again later", RetryAfter: secs}, http.StatusTooManyRequests),
	)
	return Wrap(e, opts...)
}
