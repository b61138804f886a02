// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	devSessionKey    = "dev-only-change-me-please-0123456789ABCDEF"
	devAccessSecret  = "dev-only-access-secret-change-me-0123456789"
	devRefreshSecret = "dev-only-refresh-secret-change-me-0123456789"

	// minSecretLen is the shortest signing secret accepted in prod.
	minSecretLen = 32
)

// appConfigKeys defines the configuration keys for Shepherd.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: SHEPHERD_MONGO_URI, SHEPHERD_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017/?replicaSet=rs0", Desc: "MongoDB connection URI (a replica set is required for transactions)"},
	{Name: "mongo_database", Default: "shepherd", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
	{Name: "txn_standalone_fallback", Default: false, Desc: "Run without transactions on a standalone mongod (development only)"},

	// Tokens
	{Name: "jwt_access_secret", Default: devAccessSecret, Desc: "HS256 secret for access tokens"},
	{Name: "jwt_refresh_secret", Default: devRefreshSecret, Desc: "HS256 secret for refresh tokens"},
	{Name: "jwt_access_ttl", Default: "15m", Desc: "Access token lifetime"},
	{Name: "jwt_refresh_ttl", Default: "720h", Desc: "Refresh token lifetime"},

	// Cookies
	{Name: "session_key", Default: devSessionKey, Desc: "Cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "shepherd-session", Desc: "Refresh cookie name"},
	{Name: "session_domain", Default: "", Desc: "Cookie domain (blank means current host)"},

	// Cache
	{Name: "cache_backend", Default: "memory", Desc: "Listing cache: 'memory', 'redis' or 'off'"},
	{Name: "redis_url", Default: "redis://localhost:6379/0", Desc: "Redis URL when cache_backend is redis"},
	{Name: "cache_ttl", Default: "5m", Desc: "Cached listing lifetime"},
	{Name: "cache_size", Default: 1000, Desc: "Max entries in the memory cache"},

	// File storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded images"},
	{Name: "storage_local_url", Default: "/uploads", Desc: "URL prefix for serving local files"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "", Desc: "S3 key prefix"},
	{Name: "storage_s3_endpoint", Default: "", Desc: "S3-compatible endpoint (blank for AWS)"},
	{Name: "storage_s3_access_key", Default: "", Desc: "S3 access key (blank for the default credential chain)"},
	{Name: "storage_s3_secret_key", Default: "", Desc: "S3 secret key"},

	// Email/SMTP
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs messages instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@shepherd.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Shepherd", Desc: "From display name"},

	// Account emails
	{Name: "site_name", Default: "Shepherd", Desc: "Name used in email subjects and bodies"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for links in emails and OAuth callbacks"},
	{Name: "reset_expiry", Default: "10m", Desc: "Password reset code lifetime"},
	{Name: "confirm_expiry", Default: "24h", Desc: "Email confirmation code lifetime"},
	{Name: "invitation_expiry", Default: "168h", Desc: "Invitation lifetime"},

	// Audit logging
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Attempt limits
	{Name: "auth_ip_limit", Default: 30, Desc: "Sign-in and code attempts per client IP per minute (0 disables)"},
	{Name: "auth_login_limit", Default: 5, Desc: "Sign-in and code attempts per email or phone per five minutes (0 disables)"},

	// Google OAuth
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Purge worker
	{Name: "purge_schedule", Default: "@daily", Desc: "Cron schedule for purging soft-deleted contacts"},
	{Name: "purge_retention", Default: "720h", Desc: "How long soft-deleted contacts are kept (0 disables purging)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges, in order of precedence, flags,
// environment variables (WAFFLE_* for core, SHEPHERD_* for app), config
// files and the defaults above.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "SHEPHERD", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:              appValues.String("mongo_uri"),
		MongoDatabase:         appValues.String("mongo_database"),
		MongoMaxPoolSize:      uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize:      uint64(appValues.Int("mongo_min_pool_size")),
		TxnStandaloneFallback: appValues.Bool("txn_standalone_fallback"),

		JWTAccessSecret:  appValues.String("jwt_access_secret"),
		JWTRefreshSecret: appValues.String("jwt_refresh_secret"),
		JWTAccessTTL:     appValues.Duration("jwt_access_ttl", 15*time.Minute),
		JWTRefreshTTL:    appValues.Duration("jwt_refresh_ttl", 30*24*time.Hour),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		CacheBackend: appValues.String("cache_backend"),
		RedisURL:     appValues.String("redis_url"),
		CacheTTL:     appValues.Duration("cache_ttl", 5*time.Minute),
		CacheSize:    appValues.Int("cache_size"),

		StorageType:        appValues.String("storage_type"),
		StorageLocalPath:   appValues.String("storage_local_path"),
		StorageLocalURL:    appValues.String("storage_local_url"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageS3Endpoint:  appValues.String("storage_s3_endpoint"),
		StorageS3AccessKey: appValues.String("storage_s3_access_key"),
		StorageS3SecretKey: appValues.String("storage_s3_secret_key"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		SiteName:         appValues.String("site_name"),
		BaseURL:          appValues.String("base_url"),
		ResetExpiry:      appValues.Duration("reset_expiry", 10*time.Minute),
		ConfirmExpiry:    appValues.Duration("confirm_expiry", 24*time.Hour),
		InvitationExpiry: appValues.Duration("invitation_expiry", 7*24*time.Hour),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		AuthIPLimit:    appValues.Int("auth_ip_limit"),
		AuthLoginLimit: appValues.Int("auth_login_limit"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		PurgeSchedule:  appValues.String("purge_schedule"),
		PurgeRetention: appValues.Duration("purge_retention", 30*24*time.Hour),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig rejects configurations that would fail later or run
// insecurely. Development defaults for secrets are refused in prod.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return fmt.Errorf("mongo_database is required")
	}

	switch appCfg.CacheBackend {
	case "", "memory", "off":
	case "redis":
		if appCfg.RedisURL == "" {
			return fmt.Errorf("cache_backend redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown cache_backend %q", appCfg.CacheBackend)
	}

	switch appCfg.StorageType {
	case "", "local":
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return fmt.Errorf("storage_type s3 requires storage_s3_bucket and storage_s3_region")
		}
	default:
		return fmt.Errorf("unknown storage_type %q", appCfg.StorageType)
	}

	if appCfg.PurgeRetention < 0 {
		return fmt.Errorf("purge_retention must not be negative")
	}

	if coreCfg != nil && coreCfg.Env == "prod" {
		for name, secret := range map[string]string{
			"jwt_access_secret":  appCfg.JWTAccessSecret,
			"jwt_refresh_secret": appCfg.JWTRefreshSecret,
			"session_key":        appCfg.SessionKey,
		} {
			if weakSecret(secret) {
				return fmt.Errorf("%s must be at least %d characters and not a development default in prod", name, minSecretLen)
			}
		}
		if appCfg.JWTAccessSecret == appCfg.JWTRefreshSecret {
			return fmt.Errorf("jwt_access_secret and jwt_refresh_secret must differ")
		}
		if appCfg.TxnStandaloneFallback {
			return fmt.Errorf("txn_standalone_fallback is not allowed in prod")
		}
	}
	return nil
}

func weakSecret(s string) bool {
	switch s {
	case devSessionKey, devAccessSecret, devRefreshSecret:
		return true
	}
	return len(s) < minSecretLen
}
