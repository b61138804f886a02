// Package contacts runs the contact lifecycle: creation, profile updates,
// assignment, notes, labels, action items, status changes and deletion.
// Every write is scoped to one church.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	churchstore "github.com/dalemusser/shepherd/internal/app/store/churches"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	rolestore "github.com/dalemusser/shepherd/internal/app/store/roles"
	userstore "github.com/dalemusser/shepherd/internal/app/store/users"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auditlog"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/cache"
	"github.com/dalemusser/shepherd/internal/app/system/metrics"
	"github.com/dalemusser/shepherd/internal/app/system/paging"
	"github.com/dalemusser/shepherd/internal/app/system/txn"
	"github.com/dalemusser/shepherd/internal/app/system/uploads"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// createAttempts bounds retries of a create that lost a write conflict to a
// concurrent create; the retry reports the duplicate as a Conflict.
const createAttempts = 4

// purgeBatch bounds the ids loaded per purge round.
const purgeBatch = 500

type Service struct {
	db       *mongo.Database
	churches *churchstore.Store
	contacts *contactstore.Store
	roles    *rolestore.Store
	users    *userstore.Store
	cache    cache.Cache
	objects  storage.Store
	audit    *auditlog.Logger
	log      *zap.Logger
}

// New wires the service. A nil cache disables caching; a nil object store
// disables photo uploads.
func New(db *mongo.Database, c cache.Cache, objects storage.Store, audit *auditlog.Logger, log *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		db:       db,
		churches: churchstore.New(db),
		contacts: contactstore.New(db),
		roles:    rolestore.New(db),
		users:    userstore.New(db),
		cache:    c,
		objects:  objects,
		audit:    audit,
		log:      log,
	}
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.Run(ctx, s.db, s.log, fn)
}

// author returns the acting member contact set by the authorization gate.
func author(ctx context.Context) *primitive.ObjectID {
	if d, ok := authz.FromContext(ctx); ok && !d.Caller.ID.IsZero() {
		id := d.Caller.ID
		return &id
	}
	return nil
}

func systemNote(comment string, by *primitive.ObjectID) *models.Note {
	return &models.Note{
		ID:      primitive.NewObjectID(),
		Comment: comment,
		Type:    models.NoteContact,
		Member:  by,
		Date:    time.Now().UTC(),
	}
}

func listScope(churchID primitive.ObjectID) string {
	return "contacts:" + churchID.Hex()
}

func listPrefix(churchID primitive.ObjectID) string {
	return listScope(churchID) + ":"
}

// invalidate bumps churchID's listing generation and drops cached listings.
// A cache failure is logged, never returned: the write has already committed.
func (s *Service) invalidate(ctx context.Context, churchID primitive.ObjectID) {
	if err := s.cache.Bump(ctx, listScope(churchID)); err != nil {
		s.log.Warn("contact cache generation bump failed", zap.String("church_id", churchID.Hex()), zap.Error(err))
	}
	if err := s.cache.InvalidatePrefix(ctx, listPrefix(churchID)); err != nil {
		s.log.Warn("contact cache invalidation failed", zap.String("church_id", churchID.Hex()), zap.Error(err))
	}
}

// done records the outcome of a mutation and invalidates listings on success.
func (s *Service) done(ctx context.Context, op string, churchID primitive.ObjectID, err error) {
	metrics.ObserveContactOp(op, err)
	if err == nil {
		s.invalidate(ctx, churchID)
	}
}

func notFound(entity string, id primitive.ObjectID) error {
	return apperr.NotFound(entity, id.Hex())
}

// mapErr translates store errors for the contact addressed by id.
func mapErr(err error, id primitive.ObjectID) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound("contact", id)
	case errors.Is(err, contactstore.ErrDuplicateContact):
		return apperr.Conflict(apperr.ReasonDuplicateContact, "contact with this email or phone already exists")
	case errors.Is(err, contactstore.ErrAlreadyAssigned):
		return apperr.Conflict(apperr.ReasonAlreadyAssigned, "contact already assigned")
	case errors.Is(err, contactstore.ErrNotAssigned):
		return apperr.Conflict(apperr.ReasonNotAssigned, "contact not assigned")
	}
	return apperr.FromStorage(err)
}

// get loads a live contact or returns NotFound.
func (s *Service) get(ctx context.Context, churchID, id primitive.ObjectID) (models.Contact, error) {
	c, err := s.contacts.GetByID(ctx, churchID, id, false)
	if err != nil {
		return models.Contact{}, mapErr(err, id)
	}
	return c, nil
}

func (s *Service) checkUnique(ctx context.Context, churchID primitive.ObjectID, email, phone string, exclude primitive.ObjectID) error {
	emailTaken, phoneTaken, err := s.contacts.Taken(ctx, churchID, email, phone, exclude)
	if err != nil {
		return apperr.FromStorage(err)
	}
	switch {
	case emailTaken:
		return apperr.Conflict(apperr.ReasonDuplicateContact, "a contact with this email already exists")
	case phoneTaken:
		return apperr.Conflict(apperr.ReasonDuplicateContact, "a contact with this phone number already exists")
	}
	return nil
}

// CreateContact stores a new contact in churchID with a seeded
// "Contact created" note.
func (s *Service) CreateContact(ctx context.Context, churchID primitive.ObjectID, in Input) (models.Contact, error) {
	c, err := s.create(ctx, churchID, in)
	s.done(ctx, "create", churchID, err)
	if err != nil {
		return models.Contact{}, err
	}
	s.audit.Admin(ctx, audit.EventContactCreated, churchID, author(ctx), map[string]string{
		"contact_id": c.ID.Hex(),
		"type":       string(c.ContactType),
	})
	return c, nil
}

func (s *Service) create(ctx context.Context, churchID primitive.ObjectID, in Input) (models.Contact, error) {
	if err := in.normalize(); err != nil {
		return models.Contact{}, err
	}
	by := author(ctx)

	var out models.Contact
	err := txn.RunRetry(ctx, s.db, s.log, createAttempts, func(ctx context.Context) error {
		if _, err := s.churches.GetByID(ctx, churchID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return notFound("church", churchID)
			}
			return apperr.FromStorage(err)
		}
		if err := s.checkUnique(ctx, churchID, in.Profile.Email, in.Profile.Phone.MainPhone, primitive.NilObjectID); err != nil {
			return err
		}
		if in.UserID != nil {
			if _, err := s.users.GetByID(ctx, *in.UserID); err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					return notFound("user", *in.UserID)
				}
				return apperr.FromStorage(err)
			}
		}
		if in.OrgRole != nil {
			r, err := s.roles.GetByID(ctx, *in.OrgRole)
			if err != nil || r.Church != churchID {
				if err == nil || errors.Is(err, mongo.ErrNoDocuments) {
					return apperr.ErrRoleNotFound
				}
				return apperr.FromStorage(err)
			}
		}

		c := in.contact(churchID)
		c.CreatedBy = by
		c.Notes = []models.Note{*systemNote("Contact created", by)}
		created, err := s.contacts.Insert(ctx, c)
		if err != nil {
			return mapErr(err, primitive.NilObjectID)
		}
		out = created
		return nil
	})
	return out, err
}

// UpdateContact merges patch into the contact and appends a
// "Contact updated" note in the same write.
func (s *Service) UpdateContact(ctx context.Context, churchID, id primitive.ObjectID, patch Patch) (models.Contact, error) {
	var out models.Contact
	err := func() error {
		set, err := patch.fields()
		if err != nil {
			return err
		}
		by := author(ctx)
		return s.run(ctx, func(ctx context.Context) error {
			cur, err := s.get(ctx, churchID, id)
			if err != nil {
				return err
			}
			email, phone := "", ""
			if patch.Email != nil {
				email = set["profile.email"].(string)
			}
			if patch.MainPhone != nil {
				phone = set["profile.phone.main_phone"].(string)
			}
			if err := s.checkUnique(ctx, churchID, email, phone, id); err != nil {
				return err
			}
			if patch.Gender != nil && cur.Profile.Suffix == "" {
				if sfx := models.SuffixFor(*patch.Gender); sfx != "" {
					set["profile.suffix"] = sfx
				}
			}
			if by != nil {
				set["modified_by"] = *by
			}
			if err := s.contacts.Patch(ctx, churchID, id, set, systemNote("Contact updated", by)); err != nil {
				return mapErr(err, id)
			}
			out, err = s.get(ctx, churchID, id)
			return err
		})
	}()
	s.done(ctx, "update", churchID, err)
	return out, err
}

// ChangeContactStatus sets contact_status and records the change as a note.
// Any status may follow any other.
func (s *Service) ChangeContactStatus(ctx context.Context, churchID, id primitive.ObjectID, status models.ContactStatus) error {
	err := func() error {
		if !status.Valid() {
			return apperr.Validation(fmt.Sprintf("invalid contact status %q", status))
		}
		by := author(ctx)
		set := bson.M{"contact_status": status}
		if by != nil {
			set["modified_by"] = *by
		}
		note := systemNote(fmt.Sprintf("Contact status changed to %s", status), by)
		return mapErr(s.contacts.Patch(ctx, churchID, id, set, note), id)
	}()
	s.done(ctx, "status", churchID, err)
	return err
}

// SetVerification sets the verification state. Any state may follow any other.
func (s *Service) SetVerification(ctx context.Context, churchID, id primitive.ObjectID, v models.Verification) error {
	err := func() error {
		if !v.Valid() {
			return apperr.Validation(fmt.Sprintf("invalid verification %q", v))
		}
		set := bson.M{"verification": v}
		if by := author(ctx); by != nil {
			set["modified_by"] = *by
		}
		return mapErr(s.contacts.Patch(ctx, churchID, id, set, nil), id)
	}()
	s.done(ctx, "verification", churchID, err)
	return err
}

// SoftDeleteContact hides the contact from listings and default lookups.
func (s *Service) SoftDeleteContact(ctx context.Context, churchID, id primitive.ObjectID) error {
	by := author(ctx)
	err := mapErr(s.contacts.SoftDelete(ctx, churchID, id, by), id)
	s.done(ctx, "delete", churchID, err)
	if err == nil {
		s.audit.Admin(ctx, audit.EventContactDeleted, churchID, by, map[string]string{"contact_id": id.Hex()})
	}
	return err
}

// TypeOf returns the contact type of a live contact.
func (s *Service) TypeOf(ctx context.Context, churchID, id primitive.ObjectID) (models.ContactType, error) {
	c, err := s.get(ctx, churchID, id)
	if err != nil {
		return "", err
	}
	return c.ContactType, nil
}

// CountMembers reports how many of ids are members of churchID.
func (s *Service) CountMembers(ctx context.Context, churchID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	n, err := s.contacts.CountOfType(ctx, churchID, ids, models.ContactTypeMember)
	if err != nil {
		return 0, apperr.FromStorage(err)
	}
	return n, nil
}

// BatchPurge permanently removes contacts of churchID by id, deleted or not.
func (s *Service) BatchPurge(ctx context.Context, churchID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("no contact ids given")
	}
	n, err := s.contacts.Purge(ctx, ids, &churchID)
	err = apperr.FromStorage(err)
	s.done(ctx, "purge", churchID, err)
	if err != nil {
		return 0, err
	}
	s.audit.Admin(ctx, audit.EventContactsPurged, churchID, author(ctx), map[string]string{"count": fmt.Sprint(n)})
	return n, nil
}

// PurgeDeletedBefore permanently removes contacts soft-deleted before cutoff
// across all churches, in batches.
func (s *Service) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		ids, err := s.contacts.DeletedBefore(ctx, cutoff, purgeBatch)
		if err != nil {
			return total, apperr.FromStorage(err)
		}
		if len(ids) == 0 {
			return total, nil
		}
		n, err := s.contacts.Purge(ctx, ids, nil)
		total += n
		if err != nil {
			return total, apperr.FromStorage(err)
		}
		if len(ids) < purgeBatch {
			return total, nil
		}
	}
}

// Person is a populated reference to another contact.
type Person struct {
	ID        primitive.ObjectID `json:"id"`
	FirstName string             `json:"first_name"`
	LastName  string             `json:"last_name,omitempty"`
	Photo     string             `json:"photo,omitempty"`
}

func personOf(c models.Contact) Person {
	return Person{ID: c.ID, FirstName: c.Profile.FirstName, LastName: c.Profile.LastName, Photo: c.Profile.Photo}
}

// View is a contact with its role and assignees joined.
type View struct {
	models.Contact
	Age       int          `json:"age"`
	Role      *models.Role `json:"role,omitempty"`
	Assignees []Person     `json:"assignees"`
}

// GetContact returns a contact with role and assignees populated.
// Soft-deleted contacts are returned only when includeDeleted is set.
func (s *Service) GetContact(ctx context.Context, churchID, id primitive.ObjectID, includeDeleted bool) (View, error) {
	c, err := s.contacts.GetByID(ctx, churchID, id, includeDeleted)
	if err != nil {
		return View{}, mapErr(err, id)
	}
	v := View{Contact: c, Age: models.DeriveAge(c.Profile.DateOfBirth, time.Now()), Assignees: []Person{}}

	if c.OrgRole != nil {
		r, err := s.roles.GetByID(ctx, *c.OrgRole)
		switch {
		case err == nil:
			v.Role = &r
		case !errors.Is(err, mongo.ErrNoDocuments):
			return View{}, apperr.FromStorage(err)
		}
	}
	if len(c.AssignedTo) > 0 {
		people, err := s.contacts.GetByIDs(ctx, churchID, c.AssignedTo)
		if err != nil {
			return View{}, apperr.FromStorage(err)
		}
		for _, p := range people {
			v.Assignees = append(v.Assignees, personOf(p))
		}
	}
	return v, nil
}

// ListQuery narrows ListContacts.
type ListQuery struct {
	Types  []models.ContactType
	Status models.ContactStatus
	Search string
	Page   paging.Page
}

func (q ListQuery) key(churchID primitive.ObjectID, gen uint64) string {
	v := url.Values{}
	for _, t := range q.Types {
		v.Add("type", string(t))
	}
	v.Set("status", string(q.Status))
	v.Set("q", strings.ToLower(q.Search))
	v.Set("page", fmt.Sprint(q.Page.Number))
	v.Set("limit", fmt.Sprint(q.Page.Limit))
	return listPrefix(churchID) + "g" + strconv.FormatUint(gen, 10) + ":" + v.Encode()
}

// ListResult is one page of contacts.
type ListResult struct {
	Contacts []models.Contact `json:"contacts"`
	Meta     paging.Meta      `json:"meta"`
}

// ListContacts returns one page of live contacts, newest first. Results are
// cached per church until the next contact write in that church.
func (s *Service) ListContacts(ctx context.Context, churchID primitive.ObjectID, q ListQuery) (ListResult, error) {
	if q.Page.Limit <= 0 {
		q.Page.Limit = paging.DefaultLimit
	}
	if q.Page.Number <= 0 {
		q.Page.Number = 1
	}
	for _, t := range q.Types {
		if !t.Valid() {
			return ListResult{}, apperr.Validation(fmt.Sprintf("invalid contact type %q", t))
		}
	}
	if q.Status != "" && !q.Status.Valid() {
		return ListResult{}, apperr.Validation(fmt.Sprintf("invalid contact status %q", q.Status))
	}

	// The generation is captured before reading so a write that lands
	// mid-read stops this page from being cached.
	scope := listScope(churchID)
	gen, genErr := s.cache.Generation(ctx, scope)
	key := q.key(churchID, gen)
	var out ListResult
	if genErr == nil && cache.GetJSON(ctx, s.cache, key, &out) {
		metrics.ObserveCache(true)
		return out, nil
	}
	metrics.ObserveCache(false)

	f := contactstore.ListFilter{
		Types:  q.Types,
		Status: q.Status,
		Search: strings.TrimSpace(q.Search),
		Limit:  int64(q.Page.Limit),
		Skip:   q.Page.Skip(),
	}
	total, err := s.contacts.Count(ctx, churchID, f)
	if err != nil {
		return ListResult{}, apperr.FromStorage(err)
	}
	rows, err := s.contacts.List(ctx, churchID, f)
	if err != nil {
		return ListResult{}, apperr.FromStorage(err)
	}
	if rows == nil {
		rows = []models.Contact{}
	}
	out = ListResult{Contacts: rows, Meta: q.Page.MetaFor(total)}

	if genErr != nil {
		return out, nil
	}
	if now, err := s.cache.Generation(ctx, scope); err != nil || now != gen {
		return out, nil
	}
	if err := cache.SetJSON(ctx, s.cache, key, out); err != nil {
		s.log.Warn("contact list cache write failed", zap.Error(err))
	}
	return out, nil
}

// SetContactPhoto uploads an image and stores its URL in profile.photo.
func (s *Service) SetContactPhoto(ctx context.Context, churchID, id primitive.ObjectID, contentType string, body io.Reader) (models.Contact, error) {
	var out models.Contact
	err := func() error {
		if s.objects == nil {
			return apperr.Validation("file uploads are disabled")
		}
		if _, err := s.get(ctx, churchID, id); err != nil {
			return err
		}
		u, err := uploads.PutImage(ctx, s.objects, "photos/"+churchID.Hex(), contentType, body)
		if errors.Is(err, uploads.ErrUnsupportedType) {
			return apperr.Validation("photo must be a JPEG, PNG, GIF or WebP image")
		}
		if err != nil {
			s.log.Error("photo upload failed", zap.String("contact_id", id.Hex()), zap.Error(err))
			return fmt.Errorf("upload photo: %w", err)
		}
		if err := s.contacts.Patch(ctx, churchID, id, bson.M{"profile.photo": u}, nil); err != nil {
			return mapErr(err, id)
		}
		out, err = s.get(ctx, churchID, id)
		return err
	}()
	s.done(ctx, "photo", churchID, err)
	return out, err
}
