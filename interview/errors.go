package interview

import "errors"

var (
	// ErrTransport wraps network, HTTP and stream failures. Callers treat
	// a failed request as terminal for that single operation; there is no
	// application-level retry.
	ErrTransport = errors.New("transport failure")

	// ErrSessionClosed rejects any state-changing call issued after the
	// session has ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrAbnormalDisconnect marks a streaming connection that closed
	// before any termination signal was received.
	ErrAbnormalDisconnect = errors.New("stream closed without termination signal")

	// ErrReportUnavailable means the report fetch failed or the backend
	// returned an error payload instead of scores.
	ErrReportUnavailable = errors.New("report unavailable")

	// ErrBusy rejects a second submission while one is already in flight.
	// The controller never does this; the guard exists so transport bugs
	// surface loudly instead of interleaving uploads.
	ErrBusy = errors.New("submission already in flight")
)
