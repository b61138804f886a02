// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS and body limits.
// Everything Shepherd needs beyond that lives here and is passed to every
// lifecycle hook.
type AppConfig struct {
	// MongoDB
	MongoURI              string
	MongoDatabase         string
	MongoMaxPoolSize      uint64
	MongoMinPoolSize      uint64
	TxnStandaloneFallback bool // run without transactions on a standalone mongod (dev only)

	// Access and refresh tokens
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	// Refresh cookie and OAuth state
	SessionKey    string
	SessionName   string
	SessionDomain string

	// Listing cache
	CacheBackend string // memory | redis | off
	RedisURL     string
	CacheTTL     time.Duration
	CacheSize    int

	// Logo and photo storage
	StorageType        string // local | s3
	StorageLocalPath   string
	StorageLocalURL    string
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageS3Endpoint  string
	StorageS3AccessKey string
	StorageS3SecretKey string

	// Email/SMTP
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Links and lifetimes used in account emails
	SiteName         string
	BaseURL          string
	ResetExpiry      time.Duration
	ConfirmExpiry    time.Duration
	InvitationExpiry time.Duration

	// Audit logging: all | db | log | off
	AuditLogAuth  string
	AuditLogAdmin string

	// Sign-in and code attempt limits (0 disables)
	AuthIPLimit    int // per client IP per minute
	AuthLoginLimit int // per email or phone per five minutes

	// Google OAuth (disabled when either is empty)
	GoogleClientID     string
	GoogleClientSecret string

	// Soft-deleted contact purge (disabled when retention is zero)
	PurgeSchedule  string
	PurgeRetention time.Duration
}
