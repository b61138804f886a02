package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDeriveAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dob := func(y int) *time.Time {
		d := time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC)
		return &d
	}

	tests := []struct {
		name string
		dob  *time.Time
		want int
	}{
		{"nil", nil, 0},
		{"same year", dob(2026), 0},
		{"counts by year number", dob(1990), 36},
		{"future", dob(2030), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveAge(tt.dob, now); got != tt.want {
				t.Errorf("DeriveAge() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	c := Contact{Profile: Profile{FirstName: "Ruth", Gender: GenderFemale}}
	c.ApplyDefaults()

	if c.ContactType != ContactTypeInProgress {
		t.Errorf("ContactType = %q", c.ContactType)
	}
	if c.Verification != VerificationUnverified {
		t.Errorf("Verification = %q", c.Verification)
	}
	if c.ContactStatus != ContactStatusNew {
		t.Errorf("ContactStatus = %q", c.ContactStatus)
	}
	if c.MemberStatus != MemberStatusConfirmed {
		t.Errorf("MemberStatus = %q", c.MemberStatus)
	}
	if c.Profile.Suffix != "Sis." {
		t.Errorf("Suffix = %q, want Sis.", c.Profile.Suffix)
	}
	if c.Notes == nil || c.AssignedTo == nil {
		t.Error("sub-collections should be initialized")
	}
}

func TestApplyDefaults_KeepsExistingSuffix(t *testing.T) {
	c := Contact{Profile: Profile{FirstName: "Paul", Gender: GenderMale, Suffix: "Dr."}}
	c.ApplyDefaults()
	if c.Profile.Suffix != "Dr." {
		t.Errorf("Suffix = %q, want Dr.", c.Profile.Suffix)
	}
}

func TestContact_Lookups(t *testing.T) {
	a := primitive.NewObjectID()
	n := Note{ID: primitive.NewObjectID(), Comment: "hi"}
	c := Contact{AssignedTo: []primitive.ObjectID{a}, Notes: []Note{n}}

	if !c.IsAssigned(a) {
		t.Error("expected assignee to be found")
	}
	if c.IsAssigned(primitive.NewObjectID()) {
		t.Error("unexpected assignee")
	}
	if got, ok := c.FindNote(n.ID); !ok || got.Comment != "hi" {
		t.Errorf("FindNote = %+v, %v", got, ok)
	}
}

func TestLevelPath(t *testing.T) {
	if got := LevelPath("", "HQ"); got != "HQ" {
		t.Errorf("LevelPath root = %q", got)
	}
	if got := LevelPath("HQ", "Region1"); got != "HQ/Region1" {
		t.Errorf("LevelPath child = %q", got)
	}
}
