package apimodel

import "github.com/jrsteele09/go-analytics-client/credentials"

// LoginRequest is the body of POST login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST signup/.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both login/ and signup/.
type AuthResponse struct {
	// Access is the short-lived bearer credential (a JWT).
	Access string `json:"access"`

	// Refresh is the long-lived credential accepted only by token/refresh/.
	Refresh string `json:"refresh"`

	// User is the signed-in user's summary. login/ may omit it.
	User *credentials.Identity `json:"user,omitempty"`
}

// RefreshRequest is the body of POST token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries the new access credential. Refresh is only set when
// the service rotates refresh credentials.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// LogoutRequest asks the service to blacklist the refresh credential.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Detail is the generic acknowledgement body, {"detail": "..."}.
type Detail struct {
	Detail string `json:"detail"`
}
