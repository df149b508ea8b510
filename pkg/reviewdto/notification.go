package reviewdto

// ReviewNotification is posted to the completion webhook.
type ReviewNotification struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
	Summary Summary `json:"summary"`
}
