package apperror

import "net/http"

type Apperror struct {
	status  int
	code    string
	message string
	err     error
}

var (
	ServiceUnavailable  = Apperror{status: http.StatusServiceUnavailable, code: "unavailable", message: "Server Not Ready To Process This Request"}
	ServerError         = Apperror{status: http.StatusInternalServerError, code: "server", message: "Internal Server Error"}
	InvalidRequest      = Apperror{status: http.StatusBadRequest, code: "invalid_request", message: "Invalid Request Body Received"}
	NotFound            = Apperror{status: http.StatusNotFound, code: "not_found", message: "Resource Not Found On This Server"}
	HardwareUnavailable = Apperror{status: http.StatusServiceUnavailable, code: "hardware_unavailable", message: "GPIO Adapter Not Available"}
	InvalidState        = Apperror{status: http.StatusConflict, code: "invalid_state", message: "Operation Not Allowed In The Current State"}
)

func (e Apperror) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e Apperror) SetMessage(message string) Apperror {
	e.message = message
	return e
}

// Wrap attaches the underlying cause while keeping the sentinel identity.
func (e Apperror) Wrap(err error) Apperror {
	e.err = err
	return e
}

func (e Apperror) Unwrap() error {
	return e.err
}

func (e Apperror) Is(target error) bool {
	t, ok := target.(Apperror)

	if !ok {
		return false
	}

	return t.status == e.status && t.code == e.code
}

func (e Apperror) StatusAndMessage() (int, string) {
	return e.status, e.message
}
