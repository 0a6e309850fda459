package grocer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)


type ErrorKind int

const (
	// the service could not be reached or the call did not complete
	ErrorKindTransport ErrorKind = iota
	// the service refused the session token
	ErrorKindUnauthenticated
	// the service answered and declined the request
	ErrorKindRejected
)

func (self ErrorKind) String() string {
	switch self {
	case ErrorKindTransport:
		return "transport"
	case ErrorKindUnauthenticated:
		return "unauthenticated"
	case ErrorKindRejected:
		return "rejected"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(self))
	}
}


// failure of a workflow action that reports failures to its caller
type ActionError struct {
	Action string
	Kind ErrorKind
	Err error
}

func NewActionError(action string, err error) *ActionError {
	return &ActionError{
		Action: action,
		Kind: errorKind(err),
		Err: err,
	}
}

func (self *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %s", self.Action, self.Kind, self.Err)
}

func (self *ActionError) Unwrap() error {
	return self.Err
}

func ErrorKindOf(err error) (ErrorKind, bool) {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Kind, true
	}
	return 0, false
}


func errorKind(err error) ErrorKind {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrorKindUnauthenticated
		default:
			return ErrorKindRejected
		}
	}
	return ErrorKindTransport
}

// the message shown to the user for a rejected call
func errorMessage(err error) string {
	var apiErr *ApiError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}
