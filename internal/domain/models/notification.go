package models

// NotificationRequest is a text message pushed to an operator. An empty To
// falls back to the configured report recipient.
type NotificationRequest struct {
	To         string `json:"to,omitempty"`
	Message    string `json:"message"`
	PreviewURL bool   `json:"preview_url"`
}
