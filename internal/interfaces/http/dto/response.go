// Package dto holds the JSON envelope shared by every API response.
package dto

// Response is the API envelope
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	}
}

// NewErrorResponseFromError creates the error response of err and returns its HTTP status
func NewErrorResponseFromError(err error, requestID string) (Response, int) {
	info, status := ErrorInfoFromError(err)
	info.RequestID = requestID
	return Response{Success: false, Error: info}, status
}

// CountResponse carries a single count
type CountResponse struct {
	Count int64 `json:"count"`
}
