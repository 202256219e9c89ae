// Package constants holds identifiers shared across layers.
package constants

// Login notifier providers accepted by notifier.provider
const (
	NotifierProviderNone    = ""
	NotifierProviderWebhook = "webhook"
	NotifierProviderLocal   = "local"
	NotifierProviderGoogle  = "google"
)

// Cookie names shared by the handlers and the auth middleware
const (
	StateCookieName = "oauth_state"
	AuthCookieName  = "auth_token"
)
