package constants

import "time"

const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes

	DefaultTimeout = 30 * time.Second

	// Redis key prefixes
	RedisKeyOAuthState = "calendar:oauth_state:"

	OAuthStateTTL = 10 * time.Minute

	ContextKeyUserID = "user_id"
)
