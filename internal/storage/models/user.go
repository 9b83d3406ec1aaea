package models

import "time"

// DefaultCalendarID is the provider's alias for a user's main calendar.
const DefaultCalendarID = "primary"

// ReauthenticationInterval is how long a login stays fresh.
const ReauthenticationInterval = 30 * 24 * time.Hour

// User is a registered account that owns one set of calendar credentials.
type User struct {
	UserID         string     `json:"userId"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	CalendarID     string     `json:"calendarId"`
	Authenticated  bool       `json:"authenticated"`
	TokensLocation string     `json:"tokensLocation"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

// DisplayName returns the username, or the email when no username is set.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// NeedsReauthentication reports whether the user has never logged in or last
// did so more than ReauthenticationInterval before now.
func (u User) NeedsReauthentication(now time.Time) bool {
	if u.LastLogin == nil {
		return true
	}
	return now.Sub(*u.LastLogin) > ReauthenticationInterval
}
