package reviewdto

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "review service error"
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error DomainError `json:"error"`
}
