// internal/app/features/contacts/subdocs.go
package contacts

import (
	"context"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	contactsvc "github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sub returns church, contact and the named sub-document id.
func sub(r *http.Request, param string) (churchID, contactID, subID primitive.ObjectID, err error) {
	churchID, contactID, err = ids(r)
	if err != nil {
		return
	}
	subID, err = httpjson.ObjectID(r, param)
	return
}

// POST /churches/{churchID}/contacts/{contactID}/notes
func (h *Handler) ServeAddNote(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in contactsvc.NoteInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Contacts.AddNote(ctx, churchID, id, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, n)
}

// PATCH /churches/{churchID}/contacts/{contactID}/notes/{noteID}
func (h *Handler) ServeUpdateNote(w http.ResponseWriter, r *http.Request) {
	churchID, id, noteID, err := sub(r, "noteID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in struct {
		Comment string `json:"comment"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Contacts.UpdateNote(ctx, churchID, id, noteID, in.Comment); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// DELETE /churches/{churchID}/contacts/{contactID}/notes/{noteID}
func (h *Handler) ServeDeleteNote(w http.ResponseWriter, r *http.Request) {
	churchID, id, noteID, err := sub(r, "noteID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Contacts.DeleteNote(ctx, churchID, id, noteID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// POST /churches/{churchID}/contacts/{contactID}/labels
func (h *Handler) ServeAddLabel(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in contactsvc.LabelInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	l, err := h.Contacts.AddLabel(ctx, churchID, id, in)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, l)
}

// DELETE /churches/{churchID}/contacts/{contactID}/labels/{labelID}
func (h *Handler) ServeRemoveLabel(w http.ResponseWriter, r *http.Request) {
	churchID, id, labelID, err := sub(r, "labelID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Contacts.RemoveLabel(ctx, churchID, id, labelID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// POST /churches/{churchID}/contacts/{contactID}/actions
func (h *Handler) ServeAddAction(w http.ResponseWriter, r *http.Request) {
	churchID, id, err := ids(r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Contacts.AddAction(ctx, churchID, id, in.Name)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, a)
}

// POST /churches/{churchID}/contacts/{contactID}/actions/{actionID}/toggle
func (h *Handler) ServeToggleAction(w http.ResponseWriter, r *http.Request) {
	churchID, id, actionID, err := sub(r, "actionID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Contacts.ToggleAction(ctx, churchID, id, actionID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, a)
}

// DELETE /churches/{churchID}/contacts/{contactID}/actions/{actionID}
func (h *Handler) ServeDeleteAction(w http.ResponseWriter, r *http.Request) {
	churchID, id, actionID, err := sub(r, "actionID")
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Contacts.DeleteAction(ctx, churchID, id, actionID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}
