package riftdb

import "fmt"

// ConnectionError is the typed error family for the connection runtime.
type ConnectionError struct {
	Kind    ConnectionErrorKind
	Message string
}

type ConnectionErrorKind string

const (
	ErrNotConnected     ConnectionErrorKind = "NotConnected"
	ErrAlreadyConnected ConnectionErrorKind = "AlreadyConnected"
	ErrAuthRejected     ConnectionErrorKind = "AuthRejected"
	ErrRequestTimeout   ConnectionErrorKind = "RequestTimeout"
	ErrClosed           ConnectionErrorKind = "Closed"
)

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("riftdb: %s: %s", e.Kind, e.Message)
}
