package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/htmlsanitize"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignContact adds assignee to the contact's assigned_to list. Both must
// be live contacts of churchID.
func (s *Service) AssignContact(ctx context.Context, churchID, id, assignee primitive.ObjectID) error {
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		if _, err := s.get(ctx, churchID, assignee); err != nil {
			return err
		}
		return mapErr(s.contacts.AddAssignee(ctx, churchID, id, assignee), id)
	})
	s.done(ctx, "assign", churchID, err)
	return err
}

// UnassignContact removes assignee from the contact's assigned_to list.
func (s *Service) UnassignContact(ctx context.Context, churchID, id, assignee primitive.ObjectID) error {
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		return mapErr(s.contacts.RemoveAssignee(ctx, churchID, id, assignee), id)
	})
	s.done(ctx, "unassign", churchID, err)
	return err
}

// NoteInput is a new note.
type NoteInput struct {
	Comment string          `json:"comment"`
	Type    models.NoteType `json:"type,omitempty"`
}

// AddNote appends a note authored by the acting member.
func (s *Service) AddNote(ctx context.Context, churchID, id primitive.ObjectID, in NoteInput) (models.Note, error) {
	note, err := func() (models.Note, error) {
		comment := htmlsanitize.Text(in.Comment)
		if comment == "" {
			return models.Note{}, apperr.Validation("comment is required")
		}
		if in.Type == "" {
			in.Type = models.NoteGeneral
		}
		if !in.Type.Valid() {
			return models.Note{}, apperr.Validation(fmt.Sprintf("invalid note type %q", in.Type))
		}
		n := models.Note{
			ID:      primitive.NewObjectID(),
			Comment: comment,
			Type:    in.Type,
			Member:  author(ctx),
			Date:    time.Now().UTC(),
		}
		if err := s.contacts.PushNote(ctx, churchID, id, n); err != nil {
			return models.Note{}, mapErr(err, id)
		}
		return n, nil
	}()
	s.done(ctx, "note_add", churchID, err)
	return note, err
}

// UpdateNote rewrites a note's comment. The note is marked edited, its date
// refreshed and its author set to the acting member.
func (s *Service) UpdateNote(ctx context.Context, churchID, id, noteID primitive.ObjectID, comment string) error {
	comment = htmlsanitize.Text(comment)
	err := func() error {
		if comment == "" {
			return apperr.Validation("comment is required")
		}
		by := author(ctx)
		return s.run(ctx, func(ctx context.Context) error {
			if _, err := s.get(ctx, churchID, id); err != nil {
				return err
			}
			err := s.contacts.UpdateNote(ctx, churchID, id, noteID, comment, by)
			if errors.Is(err, contactstore.ErrNoteNotFound) {
				return notFound("note", noteID)
			}
			return mapErr(err, id)
		})
	}()
	s.done(ctx, "note_update", churchID, err)
	return err
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, churchID, id, noteID primitive.ObjectID) error {
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		err := s.contacts.DeleteNote(ctx, churchID, id, noteID)
		if errors.Is(err, contactstore.ErrNoteNotFound) {
			return notFound("note", noteID)
		}
		return mapErr(err, id)
	})
	s.done(ctx, "note_delete", churchID, err)
	return err
}

// LabelInput is a new label. Color defaults to blue.
type LabelInput struct {
	Label string            `json:"label"`
	Color models.LabelColor `json:"color,omitempty"`
}

func (s *Service) AddLabel(ctx context.Context, churchID, id primitive.ObjectID, in LabelInput) (models.Label, error) {
	label, err := func() (models.Label, error) {
		text := htmlsanitize.Text(in.Label)
		if text == "" {
			return models.Label{}, apperr.Validation("label is required")
		}
		if in.Color == "" {
			in.Color = models.LabelBlue
		}
		if !in.Color.Valid() {
			return models.Label{}, apperr.Validation(fmt.Sprintf("invalid label color %q", in.Color))
		}
		l := models.Label{ID: primitive.NewObjectID(), Label: text, Color: in.Color}
		if err := s.contacts.PushLabel(ctx, churchID, id, l); err != nil {
			return models.Label{}, mapErr(err, id)
		}
		return l, nil
	}()
	s.done(ctx, "label_add", churchID, err)
	return label, err
}

func (s *Service) RemoveLabel(ctx context.Context, churchID, id, labelID primitive.ObjectID) error {
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		err := s.contacts.DeleteLabel(ctx, churchID, id, labelID)
		if errors.Is(err, contactstore.ErrLabelNotFound) {
			return notFound("label", labelID)
		}
		return mapErr(err, id)
	})
	s.done(ctx, "label_remove", churchID, err)
	return err
}

// AddAction appends an open action item.
func (s *Service) AddAction(ctx context.Context, churchID, id primitive.ObjectID, name string) (models.Action, error) {
	action, err := func() (models.Action, error) {
		name = htmlsanitize.Text(name)
		if name == "" {
			return models.Action{}, apperr.Validation("action name is required")
		}
		a := models.Action{ID: primitive.NewObjectID(), Name: name}
		if err := s.contacts.PushAction(ctx, churchID, id, a); err != nil {
			return models.Action{}, mapErr(err, id)
		}
		return a, nil
	}()
	s.done(ctx, "action_add", churchID, err)
	return action, err
}

// ToggleAction flips an action's completed flag and returns the new state.
func (s *Service) ToggleAction(ctx context.Context, churchID, id, actionID primitive.ObjectID) (models.Action, error) {
	var out models.Action
	err := s.run(ctx, func(ctx context.Context) error {
		c, err := s.get(ctx, churchID, id)
		if err != nil {
			return err
		}
		a, ok := c.FindAction(actionID)
		if !ok {
			return notFound("action", actionID)
		}
		err = s.contacts.SetActionCompleted(ctx, churchID, id, actionID, a.Completed)
		if errors.Is(err, contactstore.ErrActionNotFound) {
			return notFound("action", actionID)
		}
		if err != nil {
			return mapErr(err, id)
		}
		a.Completed = !a.Completed
		out = a
		return nil
	})
	s.done(ctx, "action_toggle", churchID, err)
	return out, err
}

func (s *Service) DeleteAction(ctx context.Context, churchID, id, actionID primitive.ObjectID) error {
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		err := s.contacts.DeleteAction(ctx, churchID, id, actionID)
		if errors.Is(err, contactstore.ErrActionNotFound) {
			return notFound("action", actionID)
		}
		return mapErr(err, id)
	})
	s.done(ctx, "action_delete", churchID, err)
	return err
}
