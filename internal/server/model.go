package server

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Response headers.
const (
	HeaderResultKey       = "X-Result-Key"
	HeaderCache           = "X-Cache"
	HeaderBlendFallback   = "X-Blend-Fallback"
	HeaderPixelsRemaining = "X-Pixels-Remaining"
)
