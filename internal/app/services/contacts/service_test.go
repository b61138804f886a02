package contacts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/cache"
	"github.com/dalemusser/shepherd/internal/app/system/indexes"
	"github.com/dalemusser/shepherd/internal/app/system/paging"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/dalemusser/shepherd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	db     *mongo.Database
	svc    *contacts.Service
	fx     *testutil.Fixtures
	church models.Church
	actor  models.Contact
	ctx    context.Context
}

// newEnv returns a service over a fresh database with one church and an
// acting admin member recorded in the context.
func newEnv(t *testing.T, c cache.Cache) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	church, _ := fx.CreateHQChurch(ctx, "Grace Chapel", "office@grace.org", "233200000001")
	roles := fx.CreateDefaultRoles(ctx, church.ID, true)
	user := fx.CreateUser(ctx, "Admin", "admin@grace.org")
	actor := fx.CreateMember(ctx, church.ID, user.ID, roles[permissions.RoleAdmin].ID, "Admin", "233200000100")

	ctx = authz.WithDecision(ctx, authz.Decision{Caller: actor, ChurchID: church.ID})
	return &env{
		db:     db,
		svc:    contacts.New(db, c, nil, nil, zap.NewNop()),
		fx:     fx,
		church: church,
		actor:  actor,
		ctx:    ctx,
	}
}

func lead(first, phone, email string) contacts.Input {
	return contacts.Input{Profile: models.Profile{
		FirstName: first,
		Email:     email,
		Phone:     models.Phone{MainPhone: phone},
	}}
}

func TestCreateContact(t *testing.T) {
	e := newEnv(t, nil)

	c, err := e.svc.CreateContact(e.ctx, e.church.ID, contacts.Input{
		Profile: models.Profile{
			FirstName: " Kwesi ",
			Gender:    models.GenderMale,
			Email:     "Kwesi@Example.com",
			Phone:     models.Phone{MainPhone: "+233 24 111 2222"},
		},
	})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	if c.Profile.FirstName != "Kwesi" || c.Profile.Email != "kwesi@example.com" || c.Profile.Phone.MainPhone != "233241112222" {
		t.Errorf("profile not normalized: %+v", c.Profile)
	}
	if c.Profile.Suffix != "Bro." {
		t.Errorf("suffix = %q, want Bro.", c.Profile.Suffix)
	}
	if c.ContactType != models.ContactTypeInProgress || c.ContactStatus != models.ContactStatusNew ||
		c.Verification != models.VerificationUnverified || c.MemberStatus != models.MemberStatusConfirmed {
		t.Errorf("defaults not applied: %+v", c)
	}
	if len(c.Notes) != 1 || c.Notes[0].Comment != "Contact created" || c.Notes[0].Type != models.NoteContact {
		t.Fatalf("seed note = %+v", c.Notes)
	}
	if c.Notes[0].Member == nil || *c.Notes[0].Member != e.actor.ID {
		t.Errorf("seed note author = %v, want acting member", c.Notes[0].Member)
	}
	if c.CreatedBy == nil || *c.CreatedBy != e.actor.ID {
		t.Errorf("created_by = %v", c.CreatedBy)
	}
}

func TestCreateContact_Errors(t *testing.T) {
	e := newEnv(t, nil)
	if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Existing", "5551000", "dup@example.com")); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	missingUser := primitive.NewObjectID()
	foreignRole := primitive.NewObjectID()

	tests := []struct {
		name   string
		church primitive.ObjectID
		in     contacts.Input
		check  func(error) bool
	}{
		{"duplicate phone", e.church.ID, lead("B", "555-1000", ""), func(err error) bool { return errors.Is(err, apperr.ErrDuplicate) }},
		{"duplicate email", e.church.ID, lead("C", "5552000", "DUP@example.com"), func(err error) bool { return errors.Is(err, apperr.ErrDuplicate) }},
		{"missing church", primitive.NewObjectID(), lead("D", "5553000", ""), func(err error) bool { return apperr.KindOf(err) == apperr.KindNotFound }},
		{"missing first name", e.church.ID, lead(" ", "5554000", ""), func(err error) bool { return apperr.KindOf(err) == apperr.KindValidation }},
		{"missing phone", e.church.ID, lead("E", "", ""), func(err error) bool { return apperr.KindOf(err) == apperr.KindValidation }},
		{"bad enum", e.church.ID, contacts.Input{Profile: lead("F", "5555000", "").Profile, ContactStatus: "maybe"}, func(err error) bool { return apperr.KindOf(err) == apperr.KindValidation }},
		{"unknown user", e.church.ID, contacts.Input{Profile: lead("G", "5556000", "").Profile, UserID: &missingUser}, func(err error) bool { return apperr.KindOf(err) == apperr.KindNotFound }},
		{"unknown role", e.church.ID, contacts.Input{Profile: lead("H", "5557000", "").Profile, OrgRole: &foreignRole}, func(err error) bool { return errors.Is(err, apperr.ErrRoleNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateContact(e.ctx, tt.church, tt.in)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateContact_UniquenessIsPerChurch(t *testing.T) {
	e := newEnv(t, nil)
	other, _ := e.fx.CreateHQChurch(e.ctx, "Other", "other@example.org", "999")

	if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("A", "5550000", "a@example.com")); err != nil {
		t.Fatalf("first church: %v", err)
	}
	if _, err := e.svc.CreateContact(e.ctx, other.ID, lead("A", "5550000", "a@example.com")); err != nil {
		t.Fatalf("same phone and email in another church should succeed: %v", err)
	}
}

func TestCreateContact_ChurchPhoneIsSeparateNamespace(t *testing.T) {
	e := newEnv(t, nil)

	// The church itself is reachable on this number; a member may use it too.
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Usher", e.church.Contact.Phone, e.church.Contact.Email))
	if err != nil {
		t.Fatalf("contact with the church's own phone: %v", err)
	}
	if c.Profile.Phone.MainPhone != e.church.Contact.Phone {
		t.Errorf("phone = %q", c.Profile.Phone.MainPhone)
	}
}

func TestCreateContact_DeletedContactFreesPhone(t *testing.T) {
	e := newEnv(t, nil)

	first, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Old", "5559999", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.svc.SoftDeleteContact(e.ctx, e.church.ID, first.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("New", "5559999", "")); err != nil {
		t.Fatalf("reuse of a deleted contact's phone: %v", err)
	}
}

func TestCreateContact_ConcurrentSamePhone(t *testing.T) {
	e := newEnv(t, nil)

	const racers = 4
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.CreateContact(e.ctx, e.church.ID, lead("Racer", "5551234", ""))
		}(i)
	}
	wg.Wait()

	created := 0
	for i, err := range errs {
		switch {
		case err == nil:
			created++
		case apperr.KindOf(err) != apperr.KindConflict:
			t.Errorf("racer %d: err = %v, want conflict", i, err)
		}
	}
	if created != 1 {
		t.Fatalf("created %d contacts, want exactly 1", created)
	}
	n, err := e.db.Collection("contacts").CountDocuments(e.ctx, bson.M{"profile.phone.main_phone": "5551234"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("stored %d contacts with the phone, want 1", n)
	}
}

func TestUpdateContact(t *testing.T) {
	e := newEnv(t, nil)

	c, err := e.svc.CreateContact(e.ctx, e.church.ID, contacts.Input{Profile: models.Profile{
		FirstName: "Akua",
		Phone:     models.Phone{MainPhone: "111"},
		Address:   models.Address{City: "Accra", Country: "GH"},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Other", "222", "other@example.com"))
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	last := "Mensah"
	female := models.GenderFemale
	phone := "111"
	got, err := e.svc.UpdateContact(e.ctx, e.church.ID, c.ID, contacts.Patch{
		LastName:  &last,
		Gender:    &female,
		MainPhone: &phone,
		Address:   &models.Address{Street: "5 Ring Rd"},
	})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if got.Profile.LastName != "Mensah" || got.Profile.FirstName != "Akua" {
		t.Errorf("names = %q %q", got.Profile.FirstName, got.Profile.LastName)
	}
	if got.Profile.Address.Street != "5 Ring Rd" || got.Profile.Address.City != "Accra" {
		t.Errorf("address not merged: %+v", got.Profile.Address)
	}
	if got.Profile.Suffix != "Sis." {
		t.Errorf("suffix = %q, want Sis. assigned on first gender", got.Profile.Suffix)
	}
	if len(got.Notes) != 2 || got.Notes[1].Comment != "Contact updated" {
		t.Errorf("notes = %+v, want update note appended", got.Notes)
	}
	if got.ModifiedBy == nil || *got.ModifiedBy != e.actor.ID {
		t.Errorf("modified_by = %v", got.ModifiedBy)
	}

	male := models.GenderMale
	got, err = e.svc.UpdateContact(e.ctx, e.church.ID, c.ID, contacts.Patch{Gender: &male})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if got.Profile.Suffix != "Sis." {
		t.Errorf("suffix changed to %q; it is assigned only once", got.Profile.Suffix)
	}

	taken := "OTHER@example.com"
	if _, err := e.svc.UpdateContact(e.ctx, e.church.ID, c.ID, contacts.Patch{Email: &taken}); !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("email clash err = %v, want duplicate", err)
	}
	if _, err := e.svc.UpdateContact(e.ctx, e.church.ID, primitive.NewObjectID(), contacts.Patch{LastName: &last}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing contact err = %v, want not found", err)
	}
	if _, err := e.svc.UpdateContact(e.ctx, e.church.ID, other.ID, contacts.Patch{}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty patch err = %v, want validation", err)
	}
}

func TestAssignContact_Idempotency(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Lead", "300", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := e.svc.AssignContact(e.ctx, e.church.ID, c.ID, e.actor.ID); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := e.svc.AssignContact(e.ctx, e.church.ID, c.ID, e.actor.ID); !errors.Is(err, apperr.ErrAlreadyAssigned) {
		t.Fatalf("second assign err = %v, want already assigned", err)
	}

	v, err := e.svc.GetContact(e.ctx, e.church.ID, c.ID, false)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if len(v.AssignedTo) != 1 || len(v.Assignees) != 1 || v.Assignees[0].FirstName != "Admin" {
		t.Errorf("assignees = %+v", v.Assignees)
	}

	if err := e.svc.UnassignContact(e.ctx, e.church.ID, c.ID, e.actor.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if err := e.svc.UnassignContact(e.ctx, e.church.ID, c.ID, e.actor.ID); !errors.Is(err, apperr.ErrNotAssigned) {
		t.Fatalf("second unassign err = %v, want not assigned", err)
	}

	if err := e.svc.AssignContact(e.ctx, e.church.ID, c.ID, primitive.NewObjectID()); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown assignee err = %v, want not found", err)
	}
}

func TestNotes(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Noted", "400", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := e.svc.AddNote(e.ctx, e.church.ID, c.ID, contacts.NoteInput{Comment: "<b>Pray</b> for exams", Type: models.NotePrayer})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n.Comment != "Pray for exams" {
		t.Errorf("comment = %q, want markup stripped", n.Comment)
	}

	if err := e.svc.UpdateNote(e.ctx, e.church.ID, c.ID, n.ID, "Passed exams"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	v, err := e.svc.GetContact(e.ctx, e.church.ID, c.ID, false)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	got, ok := v.FindNote(n.ID)
	if !ok {
		t.Fatal("note missing after update")
	}
	if got.Comment != "Passed exams" || !got.IsEdited || got.Type != models.NotePrayer {
		t.Errorf("updated note = %+v", got)
	}
	if got.Member == nil || *got.Member != e.actor.ID {
		t.Errorf("note author = %v, want modifier", got.Member)
	}

	if err := e.svc.DeleteNote(e.ctx, e.church.ID, c.ID, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	var ae *apperr.Error
	err = e.svc.DeleteNote(e.ctx, e.church.ID, c.ID, n.ID)
	if !errors.As(err, &ae) || ae.Kind != apperr.KindNotFound || ae.Entity != "note" {
		t.Errorf("second delete err = %v, want note not found", err)
	}
	if err := e.svc.UpdateNote(e.ctx, e.church.ID, c.ID, n.ID, "x"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("update deleted note err = %v, want not found", err)
	}
	if _, err := e.svc.AddNote(e.ctx, e.church.ID, c.ID, contacts.NoteInput{Comment: "x", Type: "gossip"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad note type err = %v, want validation", err)
	}
}

func TestLabels(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Labelled", "500", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	l, err := e.svc.AddLabel(e.ctx, e.church.ID, c.ID, contacts.LabelInput{Label: "youth"})
	if err != nil {
		t.Fatalf("AddLabel: %v", err)
	}
	if l.Color != models.LabelBlue {
		t.Errorf("color = %q, want blue default", l.Color)
	}
	if _, err := e.svc.AddLabel(e.ctx, e.church.ID, c.ID, contacts.LabelInput{Label: "x", Color: "pink"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad color err = %v, want validation", err)
	}
	if err := e.svc.RemoveLabel(e.ctx, e.church.ID, c.ID, l.ID); err != nil {
		t.Fatalf("RemoveLabel: %v", err)
	}
	if err := e.svc.RemoveLabel(e.ctx, e.church.ID, c.ID, l.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second remove err = %v, want not found", err)
	}
}

func TestActions(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Busy", "600", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err := e.svc.AddAction(e.ctx, e.church.ID, c.ID, "Call on Sunday")
	if err != nil {
		t.Fatalf("AddAction: %v", err)
	}
	if a.Completed {
		t.Fatal("new action should be open")
	}

	for i, want := range []bool{true, false, true} {
		got, err := e.svc.ToggleAction(e.ctx, e.church.ID, c.ID, a.ID)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if got.Completed != want {
			t.Errorf("toggle %d completed = %v, want %v", i, got.Completed, want)
		}
	}

	if err := e.svc.DeleteAction(e.ctx, e.church.ID, c.ID, a.ID); err != nil {
		t.Fatalf("DeleteAction: %v", err)
	}
	if _, err := e.svc.ToggleAction(e.ctx, e.church.ID, c.ID, a.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("toggle deleted action err = %v, want not found", err)
	}
}

func TestChangeContactStatus(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Lead", "700", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Any status may follow any other.
	for _, st := range []models.ContactStatus{models.ContactStatusWon, models.ContactStatusNew, models.ContactStatusLost} {
		if err := e.svc.ChangeContactStatus(e.ctx, e.church.ID, c.ID, st); err != nil {
			t.Fatalf("change to %s: %v", st, err)
		}
	}
	v, err := e.svc.GetContact(e.ctx, e.church.ID, c.ID, false)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if v.ContactStatus != models.ContactStatusLost {
		t.Errorf("status = %q, want lost", v.ContactStatus)
	}
	last := v.Notes[len(v.Notes)-1]
	if last.Comment != "Contact status changed to lost" || last.Type != models.NoteContact {
		t.Errorf("last note = %+v", last)
	}
	if err := e.svc.ChangeContactStatus(e.ctx, e.church.ID, c.ID, "pending"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad status err = %v, want validation", err)
	}
}

func TestSoftDelete_ExcludedFromDefaultReads(t *testing.T) {
	e := newEnv(t, nil)
	c, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Gone", "800", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.svc.SoftDeleteContact(e.ctx, e.church.ID, c.ID); err != nil {
		t.Fatalf("SoftDeleteContact: %v", err)
	}

	if _, err := e.svc.GetContact(e.ctx, e.church.ID, c.ID, false); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("default lookup err = %v, want not found", err)
	}
	v, err := e.svc.GetContact(e.ctx, e.church.ID, c.ID, true)
	if err != nil {
		t.Fatalf("include-deleted lookup: %v", err)
	}
	if !v.IsDeleted || v.DeletedAt == nil {
		t.Errorf("deleted flags = %v %v", v.IsDeleted, v.DeletedAt)
	}

	res, err := e.svc.ListContacts(e.ctx, e.church.ID, contacts.ListQuery{})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	for _, row := range res.Contacts {
		if row.ID == c.ID {
			t.Error("deleted contact listed")
		}
	}
	if _, err := e.svc.AddLabel(e.ctx, e.church.ID, c.ID, contacts.LabelInput{Label: "x"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("write to deleted contact err = %v, want not found", err)
	}
	if err := e.svc.SoftDeleteContact(e.ctx, e.church.ID, c.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestBatchPurge(t *testing.T) {
	e := newEnv(t, nil)
	other, _ := e.fx.CreateHQChurch(e.ctx, "Other", "o@example.org", "1")
	mine := e.fx.CreateContact(e.ctx, e.church.ID, "Mine", "901")
	theirs := e.fx.CreateContact(e.ctx, other.ID, "Theirs", "902")

	n, err := e.svc.BatchPurge(e.ctx, e.church.ID, []primitive.ObjectID{mine.ID, theirs.ID})
	if err != nil {
		t.Fatalf("BatchPurge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1 (other church untouched)", n)
	}
	if _, err := e.svc.GetContact(e.ctx, e.church.ID, mine.ID, true); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("purged contact still readable: %v", err)
	}
	if _, err := e.svc.BatchPurge(e.ctx, e.church.ID, nil); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty purge err = %v, want validation", err)
	}
}

func TestPurgeDeletedBefore(t *testing.T) {
	e := newEnv(t, nil)
	old := e.fx.CreateContact(e.ctx, e.church.ID, "Old", "1001")
	recent := e.fx.CreateContact(e.ctx, e.church.ID, "Recent", "1002")
	live := e.fx.CreateContact(e.ctx, e.church.ID, "Live", "1003")

	coll := e.db.Collection("contacts")
	mark := func(id primitive.ObjectID, at time.Time) {
		if _, err := coll.UpdateByID(e.ctx, id, bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": at}}); err != nil {
			t.Fatalf("mark deleted: %v", err)
		}
	}
	now := time.Now().UTC()
	mark(old.ID, now.Add(-60*24*time.Hour))
	mark(recent.ID, now.Add(-time.Hour))

	n, err := e.svc.PurgeDeletedBefore(e.ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeletedBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	for id, want := range map[primitive.ObjectID]int64{old.ID: 0, recent.ID: 1, live.ID: 1} {
		got, err := coll.CountDocuments(e.ctx, bson.M{"_id": id})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if got != want {
			t.Errorf("contact %s count = %d, want %d", id.Hex(), got, want)
		}
	}
}

func TestListContacts_FiltersAndPaging(t *testing.T) {
	e := newEnv(t, nil)
	for i, name := range []string{"Ama", "Abena", "Kojo"} {
		if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead(name, string(rune('1'+i))+"000", "")); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	all, err := e.svc.ListContacts(e.ctx, e.church.ID, contacts.ListQuery{Types: []models.ContactType{models.ContactTypeInProgress}})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if all.Meta.Total != 3 {
		t.Errorf("total = %d, want 3 leads (member excluded by type)", all.Meta.Total)
	}

	page, err := e.svc.ListContacts(e.ctx, e.church.ID, contacts.ListQuery{Search: "ab", Page: paging.Page{Number: 1, Limit: 10}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Contacts) != 1 || page.Contacts[0].Profile.FirstName != "Abena" {
		t.Errorf("search results = %+v", page.Contacts)
	}

	paged, err := e.svc.ListContacts(e.ctx, e.church.ID, contacts.ListQuery{Page: paging.Page{Number: 2, Limit: 2}})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if paged.Meta.TotalPages != 2 || len(paged.Contacts) != 2 {
		t.Errorf("page 2 = %d rows, meta %+v; want 2 rows of 4 total", len(paged.Contacts), paged.Meta)
	}

	if _, err := e.svc.ListContacts(e.ctx, e.church.ID, contacts.ListQuery{Types: []models.ContactType{"alien"}}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad type err = %v, want validation", err)
	}
}

func TestListContacts_CacheInvalidatedOnWrite(t *testing.T) {
	e := newEnv(t, cache.NewMemory(64, time.Minute))
	q := contacts.ListQuery{Types: []models.ContactType{models.ContactTypeInProgress}}

	first, err := e.svc.ListContacts(e.ctx, e.church.ID, q)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if first.Meta.Total != 0 {
		t.Fatalf("total = %d, want 0", first.Meta.Total)
	}

	// Written behind the service's back: the cached page stays stale.
	e.fx.CreateContact(e.ctx, e.church.ID, "Hidden", "2000")
	stale, err := e.svc.ListContacts(e.ctx, e.church.ID, q)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if stale.Meta.Total != 0 {
		t.Fatalf("total = %d, want cached 0", stale.Meta.Total)
	}

	if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Visible", "3000", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh, err := e.svc.ListContacts(e.ctx, e.church.ID, q)
	if err != nil {
		t.Fatalf("third list: %v", err)
	}
	if fresh.Meta.Total != 2 {
		t.Errorf("total = %d, want 2 after invalidation", fresh.Meta.Total)
	}
}

// writeBetween runs write on the second Generation call, which ListContacts
// makes after its database read and before storing the page.
type writeBetween struct {
	*cache.Memory
	calls int
	write func()
}

func (w *writeBetween) Generation(ctx context.Context, scope string) (uint64, error) {
	w.calls++
	if w.calls == 2 && w.write != nil {
		f := w.write
		w.write = nil
		f()
	}
	return w.Memory.Generation(ctx, scope)
}

func TestListContacts_WriteDuringReadNotCached(t *testing.T) {
	wc := &writeBetween{Memory: cache.NewMemory(64, time.Minute)}
	e := newEnv(t, wc)
	q := contacts.ListQuery{Types: []models.ContactType{models.ContactTypeInProgress}}

	wc.write = func() {
		if _, err := e.svc.CreateContact(e.ctx, e.church.ID, lead("Late", "4000", "")); err != nil {
			t.Errorf("create during list: %v", err)
		}
	}
	first, err := e.svc.ListContacts(e.ctx, e.church.ID, q)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if first.Meta.Total != 0 {
		t.Fatalf("total = %d, want 0 as read before the write", first.Meta.Total)
	}

	second, err := e.svc.ListContacts(e.ctx, e.church.ID, q)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if second.Meta.Total != 1 {
		t.Errorf("total = %d, want 1: the page read before the write must not be cached", second.Meta.Total)
	}
}

func TestGetContact_PopulatesRole(t *testing.T) {
	e := newEnv(t, nil)

	v, err := e.svc.GetContact(e.ctx, e.church.ID, e.actor.ID, false)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if v.Role == nil || v.Role.Name != permissions.RoleAdmin {
		t.Errorf("role = %+v, want Admin", v.Role)
	}
	if _, err := e.svc.GetContact(e.ctx, primitive.NewObjectID(), e.actor.ID, false); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("cross-church lookup err = %v, want not found", err)
	}
}
