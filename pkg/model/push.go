package model

// PushResponse is the body returned by a report collector on success.
type PushResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
	ReportID string `json:"report_id,omitempty"`
}

// PushErrorResponse is the body returned by a report collector on rejection.
type PushErrorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
}
