package accounts

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	invitationstore "github.com/dalemusser/shepherd/internal/app/store/invitations"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/mailer"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func (s *Service) acceptURL(inv models.Invitation) string {
	q := url.Values{}
	q.Set("token", inv.Token)
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/invitations/" + inv.ID.Hex() + "?" + q.Encode()
}

// CreateInvitation invites a contact without an account to sign up. The
// contact must have an email address. A failed send returns
// NotificationFailed; the invitation stays valid and may be re-sent.
func (s *Service) CreateInvitation(ctx context.Context, churchID, contactID primitive.ObjectID) (models.Invitation, error) {
	var inviter primitive.ObjectID
	if d, ok := authz.FromContext(ctx); ok {
		inviter = d.Caller.ID
	}

	church, err := s.churches.GetByID(ctx, churchID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invitation{}, apperr.NotFound("church", churchID.Hex())
		}
		return models.Invitation{}, apperr.FromStorage(err)
	}
	c, err := s.contacts.GetByID(ctx, churchID, contactID, false)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invitation{}, apperr.NotFound("contact", contactID.Hex())
		}
		return models.Invitation{}, apperr.FromStorage(err)
	}
	if c.UserID != nil {
		return models.Invitation{}, apperr.Conflict(apperr.ReasonDuplicateUser, "contact already has an account")
	}
	if c.Profile.Email == "" {
		return models.Invitation{}, apperr.Validation("contact has no email address")
	}

	inv, err := s.invitations.Create(ctx, models.Invitation{
		ContactID: c.ID,
		ChurchID:  churchID,
		InvitedBy: inviter,
		ExpiresAt: s.now().Add(s.cfg.InvitationTTL).UTC(),
	})
	if err != nil {
		return models.Invitation{}, apperr.FromStorage(err)
	}
	s.audit.Admin(ctx, audit.EventInvitationCreated, churchID, &inviter, map[string]string{
		"invitation_id": inv.ID.Hex(),
		"contact_id":    c.ID.Hex(),
	})

	msg := mailer.BuildInvitation(c.Profile.Email, mailer.InvitationEmailData{
		SiteName:   s.cfg.SiteName,
		ChurchName: church.Name,
		FirstName:  c.Profile.FirstName,
		AcceptURL:  s.acceptURL(inv),
		ExpiresIn:  expiresIn(s.cfg.InvitationTTL),
	})
	if err := s.mail.Send(ctx, msg); err != nil {
		s.log.Warn("invitation email failed", zap.String("invitation_id", inv.ID.Hex()), zap.Error(err))
		return inv, apperr.NotificationFailed(err)
	}
	return inv, nil
}

// AcceptInput claims an invitation.
type AcceptInput struct {
	InvitationID primitive.ObjectID `json:"invitation_id"`
	Token        string             `json:"token"`
	Password     string             `json:"password"`
}

// AcceptInvitation creates the user for the invited contact, links the
// contact to it and consumes the invitation, all in one transaction. An
// invitation can be accepted once.
func (s *Service) AcceptInvitation(ctx context.Context, in AcceptInput) (Session, error) {
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	var u models.User
	var churchID primitive.ObjectID
	err = s.run(ctx, func(ctx context.Context) error {
		inv, err := s.invitations.GetByIDAndToken(ctx, in.InvitationID, in.Token)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("invitation", in.InvitationID.Hex())
			}
			return apperr.FromStorage(err)
		}
		if inv.Accepted {
			return apperr.Conflict(apperr.ReasonInviteUsed, "invitation already accepted")
		}
		if inv.Expired(s.now()) {
			return apperr.Validation("invitation has expired")
		}
		churchID = inv.ChurchID

		c, err := s.contacts.GetByID(ctx, inv.ChurchID, inv.ContactID, false)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("contact", inv.ContactID.Hex())
			}
			return apperr.FromStorage(err)
		}
		if c.UserID != nil {
			return apperr.Conflict(apperr.ReasonDuplicateUser, "contact already has an account")
		}

		u, err = s.users.Create(ctx, models.User{
			FirstName:      c.Profile.FirstName,
			LastName:       c.Profile.LastName,
			Email:          optional(c.Profile.Email),
			Phone:          optional(c.Profile.Phone.MainPhone),
			PasswordHash:   hash,
			Role:           models.UserRoleMember,
			Churches:       []primitive.ObjectID{inv.ChurchID},
			EmailConfirmed: true,
		})
		if err != nil {
			return mapUserErr(err)
		}
		if err := s.contacts.Patch(ctx, inv.ChurchID, c.ID, bson.M{"user_id": u.ID}, nil); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("contact", c.ID.Hex())
			}
			return apperr.FromStorage(err)
		}
		if err := s.invitations.MarkAccepted(ctx, inv.ID); err != nil {
			if errors.Is(err, invitationstore.ErrAlreadyAccepted) {
				return apperr.Conflict(apperr.ReasonInviteUsed, "invitation already accepted")
			}
			return apperr.FromStorage(err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	s.audit.Auth(ctx, audit.EventInvitationAccepted, &u.ID, true, "", map[string]string{"church_id": churchID.Hex()})
	return s.issue(u)
}
