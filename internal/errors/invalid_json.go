package errors

import "net/http"

var ErrInvalidJSON = &Exception{
	Message:    "the given data was invalid",
	StatusCode: http.StatusUnprocessableEntity,
}
