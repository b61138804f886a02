// Package accounts handles identity: signup, login, one-time codes for email
// confirmation and password reset, token refresh, external logins and
// invitations that turn a contact into a user.
package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	churchstore "github.com/dalemusser/shepherd/internal/app/store/churches"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	invitationstore "github.com/dalemusser/shepherd/internal/app/store/invitations"
	userstore "github.com/dalemusser/shepherd/internal/app/store/users"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auditlog"
	"github.com/dalemusser/shepherd/internal/app/system/mailer"
	"github.com/dalemusser/shepherd/internal/app/system/normalize"
	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"github.com/dalemusser/shepherd/internal/app/system/txn"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxCodeAttempts is the number of wrong codes accepted before code
	// entry is locked. The count survives requests for a new code.
	MaxCodeAttempts = 5
)

// Config tunes code lifetimes and the links placed in emails.
type Config struct {
	SiteName      string
	BaseURL       string
	ResetTTL      time.Duration
	ConfirmTTL    time.Duration
	InvitationTTL time.Duration
	CodeLockout   time.Duration
	BcryptCost    int
}

func (c Config) withDefaults() Config {
	if c.SiteName == "" {
		c.SiteName = "Shepherd"
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = 10 * time.Minute
	}
	if c.ConfirmTTL <= 0 {
		c.ConfirmTTL = 24 * time.Hour
	}
	if c.InvitationTTL <= 0 {
		c.InvitationTTL = 7 * 24 * time.Hour
	}
	if c.CodeLockout <= 0 {
		c.CodeLockout = 30 * time.Minute
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

type Service struct {
	db          *mongo.Database
	users       *userstore.Store
	contacts    *contactstore.Store
	churches    *churchstore.Store
	invitations *invitationstore.Store
	tokens      *tokens.Manager
	mail        mailer.Notifier
	audit       *auditlog.Logger
	log         *zap.Logger
	cfg         Config
	now         func() time.Time
}

func New(db *mongo.Database, tm *tokens.Manager, mail mailer.Notifier, audit *auditlog.Logger, log *zap.Logger, cfg Config) *Service {
	return &Service{
		db:          db,
		users:       userstore.New(db),
		contacts:    contactstore.New(db),
		churches:    churchstore.New(db),
		invitations: invitationstore.New(db),
		tokens:      tm,
		mail:        mail,
		audit:       audit,
		log:         log,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
	}
}

// WithClock replaces the time source used for code expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.Run(ctx, s.db, s.log, fn)
}

var errBadCredentials = apperr.Unauthorized(apperr.ReasonBadCredentials, "invalid login or password")

func duplicateUser() error {
	return apperr.Conflict(apperr.ReasonDuplicateUser, "an account with this email or phone already exists")
}

func mapUserErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, userstore.ErrDuplicateUser):
		return duplicateUser()
	}
	return apperr.FromStorage(err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Session is what a successful sign-in returns.
type Session struct {
	User   models.User `json:"user"`
	Tokens tokens.Pair `json:"tokens"`
}

func (s *Service) issue(u models.User) (Session, error) {
	pair, err := s.tokens.IssuePair(tokens.Subject{
		UserID:    u.ID.Hex(),
		Email:     u.EmailAddr(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

func (s *Service) hashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLength {
		return "", apperr.Validation("password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// SignupInput is a self-service registration. Email or phone is required.
type SignupInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// Signup creates a member account and signs it in. When an email is given a
// confirmation code is sent; a delivery failure is logged and does not undo
// the signup.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	in.FirstName = normalize.Name(in.FirstName)
	in.LastName = normalize.Name(in.LastName)
	in.Email = normalize.Email(in.Email)
	in.Phone = normalize.Phone(in.Phone)
	if in.FirstName == "" {
		return Session{}, apperr.Validation("first name is required")
	}
	if in.Email == "" && in.Phone == "" {
		return Session{}, apperr.Validation("email or phone is required")
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	taken, err := s.users.Exists(ctx, in.Email, in.Phone)
	if err != nil {
		return Session{}, apperr.FromStorage(err)
	}
	if taken {
		return Session{}, duplicateUser()
	}
	u, err := s.users.Create(ctx, models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
		PasswordHash: hash,
		Role:         models.UserRoleMember,
	})
	if err != nil {
		return Session{}, mapUserErr(err)
	}
	s.audit.Auth(ctx, audit.EventSignup, &u.ID, true, "", nil)

	if u.Email != nil {
		if err := s.SendEmailConfirmation(ctx, u.ID); err != nil {
			s.log.Warn("signup confirmation email failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		}
	}
	return s.issue(u)
}

// lookup finds a user by email or phone. A leading "+" and formatting in
// phone numbers are ignored.
func (s *Service) lookup(ctx context.Context, loginID string) (models.User, error) {
	id, isEmail := normalize.LoginID(loginID)
	if id == "" {
		return models.User{}, mongo.ErrNoDocuments
	}
	if isEmail {
		return s.users.GetByEmail(ctx, id)
	}
	return s.users.GetByPhone(ctx, id)
}

// Login authenticates by email or phone and password.
func (s *Service) Login(ctx context.Context, loginID, password string) (Session, error) {
	u, err := s.lookup(ctx, loginID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.audit.Auth(ctx, audit.EventLoginFailed, nil, false, apperr.ReasonBadCredentials, map[string]string{"login_id": loginID})
			return Session{}, errBadCredentials
		}
		return Session{}, apperr.FromStorage(err)
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.audit.Auth(ctx, audit.EventLoginFailed, &u.ID, false, apperr.ReasonBadCredentials, nil)
		return Session{}, errBadCredentials
	}
	s.audit.Auth(ctx, audit.EventLoginSuccess, &u.ID, true, "", map[string]string{"method": "password"})
	return s.issue(u)
}

// Refresh exchanges a valid refresh token for a new pair. The user is
// reloaded so renamed or deleted accounts are reflected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, tokens.ErrExpiredToken) {
			return Session{}, apperr.Unauthorized(apperr.ReasonExpiredToken, "refresh token expired")
		}
		return Session{}, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid refresh token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Session{}, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid refresh token")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, apperr.Unauthorized(apperr.ReasonInvalidToken, "account no longer exists")
		}
		return Session{}, apperr.FromStorage(err)
	}
	return s.issue(u)
}

// Me returns the signed-in user's account.
func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("user", userID.Hex())
		}
		return models.User{}, apperr.FromStorage(err)
	}
	return u, nil
}
