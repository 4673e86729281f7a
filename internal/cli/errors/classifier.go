// Package errors classifies CLI-facing errors into a small set of kinds
// so the formatter can attach a consistent hint, the same way the
// teacher's CLI turns raw transport errors into actionable messages.
package errors

import "strings"

type ErrorKind string

const (
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindOffline  ErrorKind = "offline"
	ErrorKindHTTP     ErrorKind = "http"
	ErrorKindRPC      ErrorKind = "rpc"
	ErrorKindNotFound ErrorKind = "not-found"
	ErrorKindOther    ErrorKind = "other"
)

type ClassifiedError struct {
	Kind    ErrorKind
	Message string
	Hint    string
	Raw     error
}

func (e ClassifiedError) Error() string {
	return e.Message
}

func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return ClassifiedError{Kind: ErrorKindAuth, Message: err.Error(), Hint: "Check the orchestrator's auth configuration.", Raw: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "timeout") || strings.Contains(msg, "econnrefused"):
		return ClassifiedError{Kind: ErrorKindOffline, Message: err.Error(), Hint: "Is orchestratord running? Start it or check its bind address.", Raw: err}
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found") || strings.Contains(msg, "notfound"):
		return ClassifiedError{Kind: ErrorKindNotFound, Message: err.Error(), Hint: "Check the server or tool id with 'orchestratorctl list'.", Raw: err}
	case strings.Contains(msg, "rpc error"):
		return ClassifiedError{Kind: ErrorKindRPC, Message: err.Error(), Hint: "The orchestrator rejected the request; see the message above.", Raw: err}
	case strings.Contains(msg, "http"):
		return ClassifiedError{Kind: ErrorKindHTTP, Message: err.Error(), Hint: "An HTTP error occurred talking to the daemon.", Raw: err}
	default:
		return ClassifiedError{Kind: ErrorKindOther, Message: err.Error(), Hint: "An unexpected error occurred.", Raw: err}
	}
}
