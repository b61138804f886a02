// Package members covers operations on contacts of type member: creation
// with a named role, listing, verification and join statistics.
package members

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/shepherd/internal/app/services/contacts"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	rolestore "github.com/dalemusser/shepherd/internal/app/store/roles"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Service struct {
	contacts *contacts.Service
	store    *contactstore.Store
	roles    *rolestore.Store
	log      *zap.Logger
	now      func() time.Time
}

// New builds the service on top of the contact lifecycle service, which
// owns uniqueness, notes and cache invalidation.
func New(db *mongo.Database, c *contacts.Service, log *zap.Logger) *Service {
	return &Service{
		contacts: c,
		store:    contactstore.New(db),
		roles:    rolestore.New(db),
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source used by JoinedStats.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func roleNotFound(name string) error {
	e := apperr.NotFound("role", name)
	e.Reason = apperr.ReasonRoleNotFound
	return e
}

// CreateMember creates a member contact holding the church role named
// roleName. Role names match case- and accent-insensitively.
func (s *Service) CreateMember(ctx context.Context, churchID primitive.ObjectID, in contacts.Input, roleName string) (models.Contact, error) {
	r, err := s.roles.GetByName(ctx, churchID, roleName)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Contact{}, roleNotFound(roleName)
		}
		return models.Contact{}, apperr.FromStorage(err)
	}
	in.OrgRole = &r.ID
	in.ContactType = models.ContactTypeMember
	return s.contacts.CreateContact(ctx, churchID, in)
}

// ListMembers returns one page of live members.
func (s *Service) ListMembers(ctx context.Context, churchID primitive.ObjectID, q contacts.ListQuery) (contacts.ListResult, error) {
	q.Types = []models.ContactType{models.ContactTypeMember}
	return s.contacts.ListContacts(ctx, churchID, q)
}

// member loads id and checks that it is a live member of churchID.
func (s *Service) member(ctx context.Context, churchID, id primitive.ObjectID) error {
	c, err := s.store.GetByID(ctx, churchID, id, false)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("member", id.Hex())
		}
		return apperr.FromStorage(err)
	}
	if c.ContactType != models.ContactTypeMember {
		return apperr.NotFound("member", id.Hex())
	}
	return nil
}

func (s *Service) UpdateVerificationStatus(ctx context.Context, churchID, id primitive.ObjectID, v models.Verification) error {
	if err := s.member(ctx, churchID, id); err != nil {
		return err
	}
	return s.contacts.SetVerification(ctx, churchID, id, v)
}

func (s *Service) SoftDeleteMember(ctx context.Context, churchID, id primitive.ObjectID) error {
	if err := s.member(ctx, churchID, id); err != nil {
		return err
	}
	return s.contacts.SoftDeleteContact(ctx, churchID, id)
}
