package members

import (
	"context"
	"time"

	"github.com/dalemusser/shepherd/internal/app/services/contacts"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SelfPatch is the part of a member record its owner may change. Type,
// status, role and pastoral fields stay with church staff.
type SelfPatch struct {
	FirstName        *string                  `json:"first_name,omitempty"`
	LastName         *string                  `json:"last_name,omitempty"`
	MiddleName       *string                  `json:"middle_name,omitempty"`
	Gender           *models.Gender           `json:"gender,omitempty"`
	DateOfBirth      *time.Time               `json:"date_of_birth,omitempty"`
	MaritalStatus    *models.MaritalStatus    `json:"marital_status,omitempty"`
	Address          *models.Address          `json:"address,omitempty"`
	MainPhone        *string                  `json:"main_phone,omitempty"`
	OtherPhones      []string                 `json:"other_phones,omitempty"`
	Email            *string                  `json:"email,omitempty"`
	EmploymentStatus *models.EmploymentStatus `json:"employment_status,omitempty"`
	EducationalLevel *models.EducationalLevel `json:"educational_level,omitempty"`
	HealthStatus     *models.HealthStatus     `json:"health_status,omitempty"`
}

func (p SelfPatch) patch() contacts.Patch {
	return contacts.Patch{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		MiddleName:       p.MiddleName,
		Gender:           p.Gender,
		DateOfBirth:      p.DateOfBirth,
		MaritalStatus:    p.MaritalStatus,
		Address:          p.Address,
		MainPhone:        p.MainPhone,
		OtherPhones:      p.OtherPhones,
		Email:            p.Email,
		EmploymentStatus: p.EmploymentStatus,
		EducationalLevel: p.EducationalLevel,
		HealthStatus:     p.HealthStatus,
	}
}

// Self returns the caller's own member record with role populated.
func (s *Service) Self(ctx context.Context, churchID, memberID primitive.ObjectID) (contacts.View, error) {
	if err := s.member(ctx, churchID, memberID); err != nil {
		return contacts.View{}, err
	}
	return s.contacts.GetContact(ctx, churchID, memberID, false)
}

// UpdateSelf applies a profile change a member makes to their own record.
func (s *Service) UpdateSelf(ctx context.Context, churchID, memberID primitive.ObjectID, p SelfPatch) (models.Contact, error) {
	if err := s.member(ctx, churchID, memberID); err != nil {
		return models.Contact{}, err
	}
	return s.contacts.UpdateContact(ctx, churchID, memberID, p.patch())
}

// LeaveChurch soft-deletes the caller's own member record. Their account
// and memberships elsewhere are untouched.
func (s *Service) LeaveChurch(ctx context.Context, churchID, memberID primitive.ObjectID) error {
	return s.SoftDeleteMember(ctx, churchID, memberID)
}
