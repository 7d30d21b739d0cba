package authn

// Principal is the acting party resolved from a request's credentials: a
// user token, the admin-root token, or (absent any credential) the
// anonymous principal used only for the `/health` route.
type Principal struct {
	UserID   string
	Username string
	IsAdmin  bool
	TokenID  string
}

// IsAnonymous reports whether no credential was presented.
func (p Principal) IsAnonymous() bool {
	return p.UserID == "" && !p.IsAdmin
}
