package models

import "encoding/json"

// Response is the result every tool hands back to its caller.
type Response[T any] struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        T               `json:"data,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Success builds a successful response.
func Success[T any](message string, data T, raw json.RawMessage) Response[T] {
	return Response[T]{
		Success:     true,
		Message:     message,
		Data:        data,
		RawResponse: raw,
	}
}

// Failure builds an unsuccessful response with a zero payload.
func Failure[T any](message string) Response[T] {
	return Response[T]{Message: message}
}

// APIResponse is the envelope returned by the application API.
type APIResponse[T any] struct {
	Context T `json:"context"`
}

// Session identifies an in-flight application.
type Session struct {
	RmLoanID        string `json:"rmLoanId"`
	SessionToken    string `json:"sessionToken,omitempty"`
	RocketAccountID string `json:"rocketAccountId,omitempty"`
}

// Started reports whether the application has been opened with the API.
func (s Session) Started() bool {
	return s.RmLoanID != ""
}
