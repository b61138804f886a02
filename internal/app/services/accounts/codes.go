package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/mailer"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// newCode returns a random 4-digit code in [1000, 9999].
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}

// HashCode returns the hex SHA-256 of a one-time code as stored on the user.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func expiresIn(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}

var (
	errInvalidCode = apperr.Validation("invalid or expired code")
	errCodesLocked = apperr.RateLimited("too many attempts; try again later")
)

func (s *Service) codesLocked(u models.User) bool {
	return u.CodeLockedUntil != nil && s.now().Before(*u.CodeLockedUntil)
}

// checkCode compares code against a pending hash. Wrong codes are counted
// per user across reissued codes; reaching MaxCodeAttempts locks code entry
// and code requests for cfg.CodeLockout.
func (s *Service) checkCode(ctx context.Context, u models.User, hash string, expiresAt *time.Time, code string) error {
	if s.codesLocked(u) {
		return errCodesLocked
	}
	if hash == "" || expiresAt == nil || !s.now().Before(*expiresAt) {
		return errInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(hash)) != 1 {
		n, err := s.users.IncrementCodeAttempts(ctx, u.ID)
		if err != nil {
			s.log.Warn("record code attempt failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
			return errInvalidCode
		}
		if n >= MaxCodeAttempts {
			if err := s.users.LockCodes(ctx, u.ID, s.now().Add(s.cfg.CodeLockout)); err != nil {
				s.log.Warn("lock code entry failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
			}
			s.log.Info("code entry locked", zap.String("user_id", u.ID.Hex()))
		}
		return errInvalidCode
	}
	return nil
}

func (s *Service) user(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("user", id.Hex())
		}
		return models.User{}, apperr.FromStorage(err)
	}
	return u, nil
}

// SendEmailConfirmation emails a fresh confirmation code, replacing any
// pending one.
func (s *Service) SendEmailConfirmation(ctx context.Context, userID primitive.ObjectID) error {
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if u.Email == nil {
		return apperr.Validation("account has no email address")
	}
	if u.EmailConfirmed {
		return apperr.Validation("email already confirmed")
	}
	if s.codesLocked(u) {
		return errCodesLocked
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	if err := s.users.SetEmailConfirmCode(ctx, u.ID, HashCode(code), s.now().Add(s.cfg.ConfirmTTL)); err != nil {
		return apperr.FromStorage(err)
	}
	msg := mailer.BuildEmailConfirmation(*u.Email, mailer.CodeEmailData{
		SiteName:  s.cfg.SiteName,
		FirstName: u.FirstName,
		Code:      code,
		ExpiresIn: expiresIn(s.cfg.ConfirmTTL),
	})
	if err := s.mail.Send(ctx, msg); err != nil {
		return apperr.NotificationFailed(err)
	}
	return nil
}

// ConfirmEmail checks code against the pending confirmation.
func (s *Service) ConfirmEmail(ctx context.Context, userID primitive.ObjectID, code string) error {
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailConfirmed {
		return nil
	}
	if err := s.checkCode(ctx, u, u.EmailConfirmHash, u.EmailConfirmExpiresAt, code); err != nil {
		return err
	}
	if err := s.users.ConfirmEmail(ctx, u.ID); err != nil {
		return apperr.FromStorage(err)
	}
	s.audit.Auth(ctx, audit.EventEmailConfirmed, &u.ID, true, "", nil)
	return nil
}

// ForgotPassword emails a reset code to the account with the given email.
// Unknown emails succeed silently. If delivery fails the stored code is
// cleared and NotificationFailed is returned.
func (s *Service) ForgotPassword(ctx context.Context, loginID string) error {
	u, err := s.lookup(ctx, loginID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Info("password reset for unknown account")
			return nil
		}
		return apperr.FromStorage(err)
	}
	if u.Email == nil {
		return apperr.Validation("account has no email address")
	}
	if s.codesLocked(u) {
		return errCodesLocked
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	if err := s.users.SetResetCode(ctx, u.ID, HashCode(code), s.now().Add(s.cfg.ResetTTL)); err != nil {
		return apperr.FromStorage(err)
	}

	msg := mailer.BuildPasswordReset(*u.Email, mailer.CodeEmailData{
		SiteName:  s.cfg.SiteName,
		FirstName: u.FirstName,
		Code:      code,
		ExpiresIn: expiresIn(s.cfg.ResetTTL),
	})
	if err := s.mail.Send(ctx, msg); err != nil {
		if clearErr := s.users.ClearResetCode(context.WithoutCancel(ctx), u.ID); clearErr != nil {
			s.log.Error("clear reset code after failed send", zap.String("user_id", u.ID.Hex()), zap.Error(clearErr))
		}
		s.audit.Auth(ctx, audit.EventPasswordResetFailed, &u.ID, false, "send_failed", nil)
		return apperr.NotificationFailed(err)
	}
	s.audit.Auth(ctx, audit.EventPasswordResetSent, &u.ID, true, "", nil)
	return nil
}

// ResetPassword sets a new password when code matches the pending reset,
// then signs the user in.
func (s *Service) ResetPassword(ctx context.Context, loginID, code, newPassword string) (Session, error) {
	u, err := s.lookup(ctx, loginID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, errInvalidCode
		}
		return Session{}, apperr.FromStorage(err)
	}
	if err := s.checkCode(ctx, u, u.ResetHash, u.ResetExpiresAt, code); err != nil {
		return Session{}, err
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.SetPassword(ctx, u.ID, hash); err != nil {
		return Session{}, apperr.FromStorage(err)
	}
	s.audit.Auth(ctx, audit.EventPasswordChanged, &u.ID, true, "", map[string]string{"via": "reset"})
	u.PasswordHash = hash
	return s.issue(u)
}
