// internal/app/features/contacts/handler.go
package contacts

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	contactsvc "github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/paging"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxPhotoBytes caps photo uploads.
const MaxPhotoBytes = 5 << 20

// Handler serves the contact endpoints of a church.
type Handler struct {
	Contacts *contactsvc.Service
	WriteErr auth.ErrorWriter
	Log      *zap.Logger
}

func NewHandler(svc *contactsvc.Service, writeErr auth.ErrorWriter, logger *zap.Logger) *Handler {
	return &Handler{Contacts: svc, WriteErr: writeErr, Log: logger}
}

// ids returns the authorized church and the {contactID} of the request.
func ids(r *http.Request) (churchID, contactID primitive.ObjectID, err error) {
	d, _ := authz.FromContext(r.Context())
	contactID, err = httpjson.ObjectID(r, "contactID")
	return d.ChurchID, contactID, err
}

// requireMemberPerm checks p against the caller's role. Contact permissions
// never reach records that are, or would become, members.
func requireMemberPerm(r *http.Request, p permissions.Permission) error {
	d, _ := authz.FromContext(r.Context())
	return authz.Authorize(&d.Caller, &d.Role, []permissions.Permission{p}, authz.All)
}

// ParseListQuery reads type (repeatable), status, q, page and limit.
func ParseListQuery(r *http.Request) contactsvc.ListQuery {
	q := contactsvc.ListQuery{
		Status: models.ContactStatus(query.Get(r, "status")),
		Search: query.Get(r, "q"),
		Page:   paging.Parse(r),
	}
	for _, t := range r.URL.Query()["type"] {
		q.Types = append(q.Types, models.ContactType(t))
	}
	return q
}

// GET /churches/{churchID}/contacts
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Contacts.ListContacts(ctx, d.ChurchID, ParseListQuery(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, out)
}

// POST /churches/{churchID}/contacts
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	var in contactsvc.Input
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if in.ContactType == models.ContactTypeMember {
		if err := requireMemberPerm(r, permissions.MemberCreate); err != nil {
			h.WriteErr(w, r, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Contacts.CreateContact(ctx, d.ChurchID, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, c)
}

// GET /churches/{churchID}/contacts/{contactID}
//
// ?include_deleted=true also returns soft-deleted contacts.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	includeDeleted, _ := strconv.ParseBool(query.Get(r, "include_deleted"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, err := h.Contacts.GetContact(ctx, churchID, id, includeDeleted)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, v)
}

// PATCH /churches/{churchID}/contacts/{contactID}
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in contactsvc.Patch
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	member := in.ContactType != nil && *in.ContactType == models.ContactTypeMember
	if !member {
		t, err := h.Contacts.TypeOf(ctx, churchID, id)
		if err != nil {
			h.WriteErr(w, r, err)
			return
		}
		member = t == models.ContactTypeMember
	}
	if member {
		if err := requireMemberPerm(r, permissions.MemberUpdate); err != nil {
			h.WriteErr(w, r, err)
			return
		}
	}

	c, err := h.Contacts.UpdateContact(ctx, churchID, id, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}

// DELETE /churches/{churchID}/contacts/{contactID}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.Contacts.TypeOf(ctx, churchID, id)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if t == models.ContactTypeMember {
		if err := requireMemberPerm(r, permissions.MemberDelete); err != nil {
			h.WriteErr(w, r, err)
			return
		}
	}
	if err := h.Contacts.SoftDeleteContact(ctx, churchID, id); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

type purgeRequest struct {
	IDs []primitive.ObjectID `json:"ids"`
}

// POST /churches/{churchID}/contacts/purge
func (h *Handler) ServePurge(w http.ResponseWriter, r *http.Request) {
	d, _ := authz.FromContext(r.Context())
	var in purgeRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if len(in.IDs) == 0 {
		h.WriteErr(w, r, apperr.Validation("ids are required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	members, err := h.Contacts.CountMembers(ctx, d.ChurchID, in.IDs)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if members > 0 {
		if err := requireMemberPerm(r, permissions.MemberDelete); err != nil {
			h.WriteErr(w, r, err)
			return
		}
	}

	n, err := h.Contacts.BatchPurge(ctx, d.ChurchID, in.IDs)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, map[string]int64{"purged": n})
}

// PUT /churches/{churchID}/contacts/{contactID}/status
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in struct {
		Status models.ContactStatus `json:"status"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Contacts.ChangeContactStatus(ctx, churchID, id, in.Status); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// PUT and DELETE /churches/{churchID}/contacts/{contactID}/assignees/{assigneeID}
func (h *Handler) ServeAssign(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	assignee, err := httpjson.ObjectID(r, "assigneeID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if r.Method == http.MethodDelete {
		err = h.Contacts.UnassignContact(ctx, churchID, id, assignee)
	} else {
		err = h.Contacts.AssignContact(ctx, churchID, id, assignee)
	}
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// PUT /churches/{churchID}/contacts/{contactID}/photo
//
// The body is the raw image; Content-Type names its format.
func (h *Handler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	c, err := h.Contacts.SetContactPhoto(ctx, churchID, id, r.Header.Get("Content-Type"), http.MaxBytesReader(w, r.Body, MaxPhotoBytes))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}
