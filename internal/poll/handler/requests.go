package handler

import "time"

// CreatePollRequest is the POST /polls body.
type CreatePollRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Options     []string   `json:"options"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// UpdatePollRequest is the PUT /polls/{id} body. Absent fields stay
// untouched; creator and vote counts are not patchable.
type UpdatePollRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Options     []string   `json:"options"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// AddOptionRequest is the POST /polls/{id}/options body.
type AddOptionRequest struct {
	Text string `json:"text"`
}
