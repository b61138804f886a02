// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"

	accountfeature "github.com/dalemusser/shepherd/internal/app/features/account"
	churchesfeature "github.com/dalemusser/shepherd/internal/app/features/churches"
	contactsfeature "github.com/dalemusser/shepherd/internal/app/features/contacts"
	errorsfeature "github.com/dalemusser/shepherd/internal/app/features/errors"
	healthfeature "github.com/dalemusser/shepherd/internal/app/features/health"
	membersfeature "github.com/dalemusser/shepherd/internal/app/features/members"
	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	"github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/app/services/members"
	"github.com/dalemusser/shepherd/internal/app/services/tenancy"
	auditstore "github.com/dalemusser/shepherd/internal/app/store/audit"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	"github.com/dalemusser/shepherd/internal/app/store/oauthstate"
	rolestore "github.com/dalemusser/shepherd/internal/app/store/roles"
	"github.com/dalemusser/shepherd/internal/app/system/auditlog"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/mailer"
	"github.com/dalemusser/shepherd/internal/app/system/metrics"
	"github.com/dalemusser/shepherd/internal/app/system/ratelimit"
	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"github.com/dalemusser/shepherd/internal/app/system/websession"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// Public routes: /health, /metrics, /auth and local uploads. Everything under
// /churches requires a bearer token; per-church routes additionally pass the
// authorization gate, which resolves the caller's membership and role.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	secure := coreCfg.Env == "prod"

	tm := tokens.NewManager(tokens.Config{
		AccessSecret:  appCfg.JWTAccessSecret,
		RefreshSecret: appCfg.JWTRefreshSecret,
		AccessTTL:     appCfg.JWTAccessTTL,
		RefreshTTL:    appCfg.JWTRefreshTTL,
	})
	sessions, err := websession.New(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, int(appCfg.JWTRefreshTTL.Seconds()), logger)
	if err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	// Services
	tenancySvc := tenancy.New(db, deps.Objects, audit, logger)
	contactSvc := contacts.New(db, deps.Cache, deps.Objects, audit, logger)
	memberSvc := members.New(db, contactSvc, logger)
	accountSvc := accounts.New(db, tm, mail, audit, logger, accounts.Config{
		SiteName:      appCfg.SiteName,
		BaseURL:       appCfg.BaseURL,
		ResetTTL:      appCfg.ResetExpiry,
		ConfirmTTL:    appCfg.ConfirmExpiry,
		InvitationTTL: appCfg.InvitationExpiry,
	})

	ew := errorsfeature.NewWriter(logger)
	gate := authz.NewGate(contactstore.New(db), rolestore.New(db), audit, logger)
	requireUser := auth.RequireUser(tm, ew.Write, logger)

	r := chi.NewRouter()
	r.Use(auditlog.Middleware)
	r.Use(metrics.Middleware)
	r.NotFound(ew.NotFound)
	r.MethodNotAllowed(ew.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, deps.Cache, logger)))
	r.Handle("/metrics", metrics.Handler())

	// Uploaded logos and photos when stored on local disk
	if prefix := strings.TrimRight(appCfg.StorageLocalURL, "/"); (appCfg.StorageType == "" || appCfg.StorageType == "local") && strings.HasPrefix(prefix, "/") {
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.StorageLocalPath))
	}

	// Authentication
	accountHandler := accountfeature.NewHandler(accountSvc, sessions, oauthstate.New(db), ew.Write, logger)
	accountHandler.Limiter = ratelimit.NewAuthLimiter(appCfg.AuthIPLimit, appCfg.AuthLoginLimit)
	if g := accountfeature.NewGoogleOAuth(appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL); g != nil {
		accountHandler.Google = g
	}
	r.Mount("/auth", accountfeature.Routes(accountHandler, requireUser))

	// Church-scoped API
	churchesHandler := churchesfeature.NewHandler(tenancySvc, ew.Write, logger)
	contactsHandler := contactsfeature.NewHandler(contactSvc, ew.Write, logger)
	membersHandler := membersfeature.NewHandler(memberSvc, accountSvc, ew.Write, logger)

	r.Group(func(pr chi.Router) {
		pr.Use(requireUser)
		pr.Mount("/churches", churchesfeature.Routes(churchesHandler, gate))
		pr.Mount("/churches/{churchID}/contacts", contactsfeature.Routes(contactsHandler, gate))
		pr.Mount("/churches/{churchID}/members", membersfeature.Routes(membersHandler, gate))
		pr.Mount("/churches/{churchID}/invitations", membersfeature.InvitationRoutes(membersHandler, gate))
		pr.Mount("/churches/{churchID}/me", membersfeature.SelfRoutes(membersHandler, gate))
	})

	return r, nil
}
