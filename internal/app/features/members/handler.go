// internal/app/features/members/handler.go
package members

import (
	"context"
	stderrors "errors"
	"net/http"

	contactsfeature "github.com/dalemusser/shepherd/internal/app/features/contacts"
	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	contactsvc "github.com/dalemusser/shepherd/internal/app/services/contacts"
	membersvc "github.com/dalemusser/shepherd/internal/app/services/members"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Members  *membersvc.Service
	Accounts *accounts.Service
	WriteErr auth.ErrorWriter
	Log      *zap.Logger
}

func NewHandler(members *membersvc.Service, accts *accounts.Service, writeErr auth.ErrorWriter, logger *zap.Logger) *Handler {
	return &Handler{Members: members, Accounts: accts, WriteErr: writeErr, Log: logger}
}

func churchID(r *http.Request) primitive.ObjectID {
	d, _ := authz.FromContext(r.Context())
	return d.ChurchID
}

// GET /churches/{churchID}/members
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Members.ListMembers(ctx, churchID(r), contactsfeature.ParseListQuery(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, out)
}

type createRequest struct {
	contactsvc.Input
	Role string `json:"role"`
}

// POST /churches/{churchID}/members
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var in createRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if in.Role == "" {
		h.WriteErr(w, r, apperr.Validation("role is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Members.CreateMember(ctx, churchID(r), in.Input, in.Role)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, m)
}

// PUT /churches/{churchID}/members/{memberID}/verification
func (h *Handler) ServeVerification(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.ObjectID(r, "memberID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in struct {
		Verification models.Verification `json:"verification"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.UpdateVerificationStatus(ctx, churchID(r), id, in.Verification); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// DELETE /churches/{churchID}/members/{memberID}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.ObjectID(r, "memberID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.SoftDeleteMember(ctx, churchID(r), id); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// GET /churches/{churchID}/members/stats?period=last_week
//
// period defaults to today.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	p := membersvc.Period(query.Get(r, "period"))
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	st, err := h.Members.JoinedStats(ctx, churchID(r), p)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, st)
}

type invitationResponse struct {
	Invitation models.Invitation `json:"invitation"`
	EmailSent  bool              `json:"email_sent"`
}

// POST /churches/{churchID}/invitations
//
// A failed email still returns 201: the invitation exists and can be re-sent.
func (h *Handler) ServeInvite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ContactID primitive.ObjectID `json:"contact_id"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if in.ContactID.IsZero() {
		h.WriteErr(w, r, apperr.Validation("contact_id is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	inv, err := h.Accounts.CreateInvitation(ctx, churchID(r), in.ContactID)
	var ae *apperr.Error
	switch {
	case err == nil:
		httpjson.Created(w, invitationResponse{Invitation: inv, EmailSent: true})
	case stderrors.As(err, &ae) && ae.Kind == apperr.KindNotificationFailed && !inv.ID.IsZero():
		h.Log.Warn("invitation created without email", zap.String("invitation_id", inv.ID.Hex()))
		httpjson.Created(w, invitationResponse{Invitation: inv})
	default:
		h.WriteErr(w, r, err)
	}
}

// GET /churches/{churchID}/me
func (h *Handler) ServeSelf(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, err := h.Members.Self(ctx, d.ChurchID, d.Caller.ID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, v)
}

// PATCH /churches/{churchID}/me
func (h *Handler) ServeUpdateSelf(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	var in membersvc.SelfPatch
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Members.UpdateSelf(ctx, d.ChurchID, d.Caller.ID, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}

// DELETE /churches/{churchID}/me
func (h *Handler) ServeLeave(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.LeaveChurch(ctx, d.ChurchID, d.Caller.ID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}
