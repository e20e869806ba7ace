package errors

import "net/http"

var ErrDispatchFailed = &Exception{
	Message:    "task could not be queued",
	StatusCode: http.StatusServiceUnavailable,
}
