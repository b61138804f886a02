package accounts

import (
	"context"
	"errors"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/normalize"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ProviderGoogle = "google"
	ProviderPhone  = "phone"
)

// ExternalProfile is an identity already verified by an outside provider.
type ExternalProfile struct {
	ProviderID    string
	Email         string
	EmailVerified bool
	Phone         string
	FirstName     string
	LastName      string
}

// GoogleLogin signs in the account linked to the Google subject, linking an
// existing account with the same email or creating a member account when
// neither exists.
func (s *Service) GoogleLogin(ctx context.Context, p ExternalProfile) (Session, error) {
	p.Email = normalize.Email(p.Email)
	if p.ProviderID == "" {
		return Session{}, apperr.Validation("google subject is required")
	}
	u, err := s.findOrCreate(ctx, ProviderGoogle, p, func(ctx context.Context) (models.User, error) {
		if p.Email == "" {
			return models.User{}, mongo.ErrNoDocuments
		}
		return s.users.GetByEmail(ctx, p.Email)
	})
	if err != nil {
		return Session{}, err
	}
	s.audit.Auth(ctx, audit.EventLoginSuccess, &u.ID, true, "", map[string]string{"method": ProviderGoogle})
	return s.issue(u)
}

// PhoneLogin signs in by a phone number the caller has already verified
// with an SMS provider. Unknown numbers get a new member account.
func (s *Service) PhoneLogin(ctx context.Context, p ExternalProfile) (Session, error) {
	p.Phone = normalize.Phone(p.Phone)
	if p.Phone == "" {
		return Session{}, apperr.Validation("phone is required")
	}
	if p.ProviderID == "" {
		p.ProviderID = p.Phone
	}
	u, err := s.findOrCreate(ctx, ProviderPhone, p, func(ctx context.Context) (models.User, error) {
		return s.users.GetByPhone(ctx, p.Phone)
	})
	if err != nil {
		return Session{}, err
	}
	s.audit.Auth(ctx, audit.EventLoginSuccess, &u.ID, true, "", map[string]string{"method": ProviderPhone})
	return s.issue(u)
}

// findOrCreate resolves provider identity first, then the fallback lookup
// (linking the provider on a hit), and finally creates a new account.
func (s *Service) findOrCreate(ctx context.Context, provider string, p ExternalProfile, fallback func(context.Context) (models.User, error)) (models.User, error) {
	u, err := s.users.GetByProvider(ctx, provider, p.ProviderID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.FromStorage(err)
	}

	ident := models.ProviderIdentity{Name: provider, ID: p.ProviderID, Email: p.Email}
	u, err = fallback(ctx)
	switch {
	case err == nil:
		if err := s.users.LinkProvider(ctx, u.ID, ident); err != nil {
			return models.User{}, mapUserErr(err)
		}
		u.Provider = &ident
		return u, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, apperr.FromStorage(err)
	}

	first := normalize.Name(p.FirstName)
	if first == "" {
		first = "Friend"
	}
	u, err = s.users.Create(ctx, models.User{
		FirstName:      first,
		LastName:       normalize.Name(p.LastName),
		Email:          optional(p.Email),
		Phone:          optional(p.Phone),
		Role:           models.UserRoleMember,
		Provider:       &ident,
		EmailConfirmed: p.Email != "" && p.EmailVerified,
	})
	if err != nil {
		return models.User{}, mapUserErr(err)
	}
	s.audit.Auth(ctx, audit.EventSignup, &u.ID, true, "", map[string]string{"method": provider})
	return u, nil
}
