package handler

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidAmount      = "invalid_amount"
	CodeNotFound           = "not_found"
	CodeUnsupportedChannel = "unsupported_channel"
	CodeInvalidSignature   = "invalid_signature"
	CodeInvalidPayload     = "invalid_payload"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidToken       = "invalid_token"
	CodeForbidden          = "forbidden"
	CodeInternal           = "internal_error"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}
