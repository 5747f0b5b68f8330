package model

// User is the authenticated platform user.
type User struct {
	ID       string `json:"id"`
	UserName string `json:"user_name,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Source   string `json:"source,omitempty"`
}

// UserInfo is the OIDC userinfo document.
type UserInfo struct {
	Sub               string `json:"sub"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// DisplayName returns Name, falling back to given and family names.
func (u *UserInfo) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	switch {
	case u.GivenName != "" && u.FamilyName != "":
		return u.GivenName + " " + u.FamilyName
	case u.GivenName != "":
		return u.GivenName
	default:
		return u.FamilyName
	}
}
