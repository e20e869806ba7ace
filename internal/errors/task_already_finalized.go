package errors

import "net/http"

var ErrTaskAlreadyFinalized = &Exception{
	Message:    "task already finalized",
	StatusCode: http.StatusConflict,
}
