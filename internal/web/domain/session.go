package domain

// SessionState is the session controller's state.
type SessionState string

const (
	StateAnonymous      SessionState = "ANONYMOUS"
	StateRedirecting    SessionState = "REDIRECTING"
	StateAuthenticating SessionState = "AUTHENTICATING"
	StateAuthenticated  SessionState = "AUTHENTICATED"
	StateRefreshing     SessionState = "REFRESHING"
	StateError          SessionState = "ERROR"
)
