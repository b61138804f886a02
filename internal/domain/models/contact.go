// internal/domain/models/contact.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactType string

const (
	ContactTypeMember      ContactType = "member"
	ContactTypeRegular     ContactType = "regular"
	ContactTypeVisitor     ContactType = "visitor"
	ContactTypeParticipant ContactType = "participant"
	ContactTypeInProgress  ContactType = "inprogress"
	ContactTypeUndefined   ContactType = "undefined"
)

type Verification string

const (
	VerificationUnverified Verification = "unverified"
	VerificationIncomplete Verification = "incomplete"
	VerificationVerified   Verification = "verified"
)

// ContactStatus is the lead pipeline position: new → contacted → won|lost.
// Any value may be set at any time.
type ContactStatus string

const (
	ContactStatusNew       ContactStatus = "new"
	ContactStatusContacted ContactStatus = "contacted"
	ContactStatusWon       ContactStatus = "won"
	ContactStatusLost      ContactStatus = "lost"
)

type MemberStatus string

const (
	MemberStatusPotential  MemberStatus = "potential"
	MemberStatusInProgress MemberStatus = "inprogress"
	MemberStatusConfirmed  MemberStatus = "confirmed"
	MemberStatusExMember   MemberStatus = "ex-member"
)

type MaturityLevel string

const (
	MaturityInfant    MaturityLevel = "infant"
	MaturityChild     MaturityLevel = "child"
	MaturityTeen      MaturityLevel = "teen"
	MaturityAdult     MaturityLevel = "adult"
	MaturityElder     MaturityLevel = "elder"
	MaturityUndefined MaturityLevel = "undefined"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type MaritalStatus string

const (
	MaritalSingle    MaritalStatus = "single"
	MaritalMarried   MaritalStatus = "married"
	MaritalDivorced  MaritalStatus = "divorced"
	MaritalWidowed   MaritalStatus = "widowed"
	MaritalUndefined MaritalStatus = "undefined"
)

type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentSelfEmployed EmploymentStatus = "self-employed"
	EmploymentStudent      EmploymentStatus = "student"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentUndefined    EmploymentStatus = "undefined"
)

type EducationalLevel string

const (
	EducationUndefined    EducationalLevel = "undefined"
	EducationPrimary      EducationalLevel = "primary"
	EducationSecondary    EducationalLevel = "secondary"
	EducationGraduate     EducationalLevel = "graduate"
	EducationPostGraduate EducationalLevel = "post-graduate"
)

type HealthStatus string

const (
	HealthHealthy          HealthStatus = "healthy"
	HealthAllergic         HealthStatus = "allergic"
	HealthSpecialCondition HealthStatus = "special condition"
	HealthOthers           HealthStatus = "others"
	HealthUndefined        HealthStatus = "undefined"
)

type NoteType string

const (
	NoteGeneral NoteType = "general"
	NotePrayer  NoteType = "prayer"
	NoteSupport NoteType = "support"
	NoteContact NoteType = "contact"
)

type LabelColor string

const (
	LabelBlue   LabelColor = "blue"
	LabelRed    LabelColor = "red"
	LabelGreen  LabelColor = "green"
	LabelYellow LabelColor = "yellow"
	LabelPurple LabelColor = "purple"
	LabelOrange LabelColor = "orange"
	LabelGrey   LabelColor = "grey"
)

func (v ContactType) Valid() bool {
	switch v {
	case ContactTypeMember, ContactTypeRegular, ContactTypeVisitor,
		ContactTypeParticipant, ContactTypeInProgress, ContactTypeUndefined:
		return true
	}
	return false
}

func (v Verification) Valid() bool {
	switch v {
	case VerificationUnverified, VerificationIncomplete, VerificationVerified:
		return true
	}
	return false
}

func (v ContactStatus) Valid() bool {
	switch v {
	case ContactStatusNew, ContactStatusContacted, ContactStatusWon, ContactStatusLost:
		return true
	}
	return false
}

func (v MemberStatus) Valid() bool {
	switch v {
	case MemberStatusPotential, MemberStatusInProgress, MemberStatusConfirmed, MemberStatusExMember:
		return true
	}
	return false
}

func (v MaturityLevel) Valid() bool {
	switch v {
	case MaturityInfant, MaturityChild, MaturityTeen, MaturityAdult, MaturityElder, MaturityUndefined:
		return true
	}
	return false
}

func (v Gender) Valid() bool {
	return v == GenderMale || v == GenderFemale
}

func (v MaritalStatus) Valid() bool {
	switch v {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed, MaritalUndefined:
		return true
	}
	return false
}

func (v EmploymentStatus) Valid() bool {
	switch v {
	case EmploymentEmployed, EmploymentUnemployed, EmploymentSelfEmployed,
		EmploymentStudent, EmploymentRetired, EmploymentUndefined:
		return true
	}
	return false
}

func (v EducationalLevel) Valid() bool {
	switch v {
	case EducationUndefined, EducationPrimary, EducationSecondary, EducationGraduate, EducationPostGraduate:
		return true
	}
	return false
}

func (v HealthStatus) Valid() bool {
	switch v {
	case HealthHealthy, HealthAllergic, HealthSpecialCondition, HealthOthers, HealthUndefined:
		return true
	}
	return false
}

func (v NoteType) Valid() bool {
	switch v {
	case NoteGeneral, NotePrayer, NoteSupport, NoteContact:
		return true
	}
	return false
}

func (v LabelColor) Valid() bool {
	switch v {
	case LabelBlue, LabelRed, LabelGreen, LabelYellow, LabelPurple, LabelOrange, LabelGrey:
		return true
	}
	return false
}

// Address is a contact's home address.
type Address struct {
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
}

// Phone holds the main phone (unique per church) and any extras.
type Phone struct {
	MainPhone   string   `bson:"main_phone" json:"main_phone"`
	OtherPhones []string `bson:"other_phones,omitempty" json:"other_phones,omitempty"`
}

// Profile is the personal data of a contact.
type Profile struct {
	FirstName        string           `bson:"first_name" json:"first_name"`
	LastName         string           `bson:"last_name,omitempty" json:"last_name,omitempty"`
	MiddleName       string           `bson:"middle_name,omitempty" json:"middle_name,omitempty"`
	Suffix           string           `bson:"suffix,omitempty" json:"suffix,omitempty"`
	Gender           Gender           `bson:"gender,omitempty" json:"gender,omitempty"`
	DateOfBirth      *time.Time       `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	MaritalStatus    MaritalStatus    `bson:"marital_status" json:"marital_status"`
	Address          Address          `bson:"address" json:"address"`
	Phone            Phone            `bson:"phone" json:"phone"`
	Email            string           `bson:"email,omitempty" json:"email,omitempty"`
	EmploymentStatus EmploymentStatus `bson:"employment_status" json:"employment_status"`
	EducationalLevel EducationalLevel `bson:"educational_level" json:"educational_level"`
	HealthStatus     HealthStatus     `bson:"health_status" json:"health_status"`
	IsWorker         bool             `bson:"is_worker" json:"is_worker"`
	IsActive         bool             `bson:"is_active" json:"is_active"`
	Photo            string           `bson:"photo,omitempty" json:"photo,omitempty"`
}

// Note is an entry in a contact's notes log.
type Note struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	Comment  string              `bson:"comment" json:"comment"`
	Type     NoteType            `bson:"type" json:"type"`
	Member   *primitive.ObjectID `bson:"member,omitempty" json:"member,omitempty"`
	IsEdited bool                `bson:"is_edited" json:"is_edited"`
	Date     time.Time           `bson:"date" json:"date"`
}

type Label struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Label string             `bson:"label" json:"label"`
	Color LabelColor         `bson:"color" json:"color"`
}

type Action struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Completed bool               `bson:"completed" json:"completed"`
}

// Contact is the aggregate for both members and leads, discriminated by
// ContactType. Notes, labels, actions and assignees are owned by the contact
// and only changed through targeted sub-document updates.
type Contact struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	UserID   *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ChurchID primitive.ObjectID  `bson:"church_id" json:"church_id"`
	OrgRole  *primitive.ObjectID `bson:"org_role,omitempty" json:"org_role,omitempty"`

	Profile Profile `bson:"profile" json:"profile"`

	ContactType   ContactType   `bson:"contact_type" json:"contact_type"`
	Verification  Verification  `bson:"verification" json:"verification"`
	ContactStatus ContactStatus `bson:"contact_status" json:"contact_status"`
	MemberStatus  MemberStatus  `bson:"member_status" json:"member_status"`
	MaturityLevel MaturityLevel `bson:"maturity_level" json:"maturity_level"`
	HowDidYouHear string        `bson:"how_did_you_hear,omitempty" json:"how_did_you_hear,omitempty"`

	Notes      []Note               `bson:"notes" json:"notes"`
	Labels     []Label              `bson:"labels" json:"labels"`
	Actions    []Action             `bson:"actions" json:"actions"`
	AssignedTo []primitive.ObjectID `bson:"assigned_to" json:"assigned_to"`

	IsDeleted  bool                `bson:"is_deleted" json:"is_deleted"`
	DeletedAt  *time.Time          `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedBy  *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	ModifiedBy *primitive.ObjectID `bson:"modified_by,omitempty" json:"modified_by,omitempty"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills classification enums and the gender suffix when unset.
func (c *Contact) ApplyDefaults() {
	if c.ContactType == "" {
		c.ContactType = ContactTypeInProgress
	}
	if c.Verification == "" {
		c.Verification = VerificationUnverified
	}
	if c.ContactStatus == "" {
		c.ContactStatus = ContactStatusNew
	}
	if c.MemberStatus == "" {
		c.MemberStatus = MemberStatusConfirmed
	}
	if c.MaturityLevel == "" {
		c.MaturityLevel = MaturityUndefined
	}
	if c.Profile.MaritalStatus == "" {
		c.Profile.MaritalStatus = MaritalUndefined
	}
	if c.Profile.EmploymentStatus == "" {
		c.Profile.EmploymentStatus = EmploymentUndefined
	}
	if c.Profile.EducationalLevel == "" {
		c.Profile.EducationalLevel = EducationUndefined
	}
	if c.Profile.HealthStatus == "" {
		c.Profile.HealthStatus = HealthUndefined
	}
	if c.Profile.Suffix == "" {
		c.Profile.Suffix = SuffixFor(c.Profile.Gender)
	}
	if c.Notes == nil {
		c.Notes = []Note{}
	}
	if c.Labels == nil {
		c.Labels = []Label{}
	}
	if c.Actions == nil {
		c.Actions = []Action{}
	}
	if c.AssignedTo == nil {
		c.AssignedTo = []primitive.ObjectID{}
	}
}

// IsAssigned reports whether assignee is in AssignedTo.
func (c Contact) IsAssigned(assignee primitive.ObjectID) bool {
	for _, id := range c.AssignedTo {
		if id == assignee {
			return true
		}
	}
	return false
}

// FindNote returns the note with the given id.
func (c Contact) FindNote(id primitive.ObjectID) (Note, bool) {
	for _, n := range c.Notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// FindAction returns the action with the given id.
func (c Contact) FindAction(id primitive.ObjectID) (Action, bool) {
	for _, a := range c.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// SuffixFor returns the honorific for a gender, or "" when unknown.
func SuffixFor(g Gender) string {
	switch g {
	case GenderMale:
		return "Bro."
	case GenderFemale:
		return "Sis."
	}
	return ""
}

// DeriveAge returns the age in whole calendar years between dob and now,
// counted by year number. It returns 0 when dob is nil or in the future.
func DeriveAge(dob *time.Time, now time.Time) int {
	if dob == nil {
		return 0
	}
	age := now.Year() - dob.Year()
	if age < 0 {
		return 0
	}
	return age
}
