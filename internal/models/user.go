package models

// User is the authenticated caller. ID is the stable identifier used for
// quota accounting and cache partitioning (the email claim when present).
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}
