package user

// Role is the authorization role assigned by the backend.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// IsAdmin reports whether the role grants admin views.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User represents an authenticated platform user.
type User struct {
	UserID      int64  `json:"user_id"`
	Role        Role   `json:"role"`
	Name        string `json:"name,omitempty"`
	Username    string `json:"username"`
	Affiliation string `json:"affiliation"`
}

// DisplayName returns the name, falling back to the username.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        Role   `json:"role"`
}
