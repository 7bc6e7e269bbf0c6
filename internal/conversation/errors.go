package conversation

import "fmt"

type ErrorCode string

const (
	// ErrorCodeStorage covers failed reads and writes against DynamoDB.
	// Events that hit it are retried by redelivery, never swallowed.
	ErrorCodeStorage ErrorCode = "storage_unavailable"
	// ErrorCodeGateway covers failed sends and edits through the chat
	// gateway.
	ErrorCodeGateway ErrorCode = "gateway_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func storageError(msg string, err error) *Error {
	return &Error{Code: ErrorCodeStorage, Message: msg, Err: err}
}

func gatewayError(msg string, err error) *Error {
	return &Error{Code: ErrorCodeGateway, Message: msg, Err: err}
}
