package contacts

import (
	"fmt"
	"time"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/htmlsanitize"
	"github.com/dalemusser/shepherd/internal/app/system/normalize"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Input is the data a contact is created from. Zero enum values take the
// model defaults.
type Input struct {
	Profile       models.Profile       `json:"profile"`
	UserID        *primitive.ObjectID  `json:"user_id,omitempty"`
	OrgRole       *primitive.ObjectID  `json:"org_role,omitempty"`
	ContactType   models.ContactType   `json:"contact_type,omitempty"`
	Verification  models.Verification  `json:"verification,omitempty"`
	ContactStatus models.ContactStatus `json:"contact_status,omitempty"`
	MemberStatus  models.MemberStatus  `json:"member_status,omitempty"`
	MaturityLevel models.MaturityLevel `json:"maturity_level,omitempty"`
	HowDidYouHear string               `json:"how_did_you_hear,omitempty"`
}

type enumCheck struct {
	name  string
	value string
	valid bool
}

func checkEnums(checks ...enumCheck) error {
	for _, c := range checks {
		if c.value != "" && !c.valid {
			return apperr.Validation(fmt.Sprintf("invalid %s %q", c.name, c.value))
		}
	}
	return nil
}

func (in *Input) normalize() error {
	p := &in.Profile
	p.FirstName = normalize.Name(p.FirstName)
	p.LastName = normalize.Name(p.LastName)
	p.MiddleName = normalize.Name(p.MiddleName)
	p.Email = normalize.Email(p.Email)
	p.Phone.MainPhone = normalize.Phone(p.Phone.MainPhone)
	for i, ph := range p.Phone.OtherPhones {
		p.Phone.OtherPhones[i] = normalize.Phone(ph)
	}
	in.HowDidYouHear = htmlsanitize.Text(in.HowDidYouHear)

	if p.FirstName == "" {
		return apperr.Validation("first name is required")
	}
	if p.Phone.MainPhone == "" {
		return apperr.Validation("main phone is required")
	}
	return checkEnums(
		enumCheck{"gender", string(p.Gender), p.Gender.Valid()},
		enumCheck{"marital status", string(p.MaritalStatus), p.MaritalStatus.Valid()},
		enumCheck{"employment status", string(p.EmploymentStatus), p.EmploymentStatus.Valid()},
		enumCheck{"educational level", string(p.EducationalLevel), p.EducationalLevel.Valid()},
		enumCheck{"health status", string(p.HealthStatus), p.HealthStatus.Valid()},
		enumCheck{"contact type", string(in.ContactType), in.ContactType.Valid()},
		enumCheck{"verification", string(in.Verification), in.Verification.Valid()},
		enumCheck{"contact status", string(in.ContactStatus), in.ContactStatus.Valid()},
		enumCheck{"member status", string(in.MemberStatus), in.MemberStatus.Valid()},
		enumCheck{"maturity level", string(in.MaturityLevel), in.MaturityLevel.Valid()},
	)
}

func (in Input) contact(churchID primitive.ObjectID) models.Contact {
	return models.Contact{
		UserID:        in.UserID,
		ChurchID:      churchID,
		OrgRole:       in.OrgRole,
		Profile:       in.Profile,
		ContactType:   in.ContactType,
		Verification:  in.Verification,
		ContactStatus: in.ContactStatus,
		MemberStatus:  in.MemberStatus,
		MaturityLevel: in.MaturityLevel,
		HowDidYouHear: in.HowDidYouHear,
	}
}

// Patch lists the contact fields to change. Nil fields are left untouched.
type Patch struct {
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
	IsWorker         *bool                    `json:"is_worker,omitempty"`
	IsActive         *bool                    `json:"is_active,omitempty"`
	ContactType      *models.ContactType      `json:"contact_type,omitempty"`
	MemberStatus     *models.MemberStatus     `json:"member_status,omitempty"`
	MaturityLevel    *models.MaturityLevel    `json:"maturity_level,omitempty"`
	HowDidYouHear    *string                  `json:"how_did_you_hear,omitempty"`
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func valid[T interface {
	~string
	Valid() bool
}](p *T) bool {
	return p == nil || (*p).Valid()
}

// fields validates p and returns the dotted $set document. Nested address
// fields are merged one by one so unset parts survive.
func (p Patch) fields() (bson.M, error) {
	if err := checkEnums(
		enumCheck{"gender", str(p.Gender), valid(p.Gender)},
		enumCheck{"marital status", str(p.MaritalStatus), valid(p.MaritalStatus)},
		enumCheck{"employment status", str(p.EmploymentStatus), valid(p.EmploymentStatus)},
		enumCheck{"educational level", str(p.EducationalLevel), valid(p.EducationalLevel)},
		enumCheck{"health status", str(p.HealthStatus), valid(p.HealthStatus)},
		enumCheck{"contact type", str(p.ContactType), valid(p.ContactType)},
		enumCheck{"member status", str(p.MemberStatus), valid(p.MemberStatus)},
		enumCheck{"maturity level", str(p.MaturityLevel), valid(p.MaturityLevel)},
	); err != nil {
		return nil, err
	}

	set := bson.M{}
	if p.FirstName != nil {
		v := normalize.Name(*p.FirstName)
		if v == "" {
			return nil, apperr.Validation("first name cannot be empty")
		}
		set["profile.first_name"] = v
	}
	if p.LastName != nil {
		set["profile.last_name"] = normalize.Name(*p.LastName)
	}
	if p.MiddleName != nil {
		set["profile.middle_name"] = normalize.Name(*p.MiddleName)
	}
	if p.Gender != nil {
		set["profile.gender"] = *p.Gender
	}
	if p.DateOfBirth != nil {
		set["profile.date_of_birth"] = p.DateOfBirth.UTC()
	}
	if p.MaritalStatus != nil {
		set["profile.marital_status"] = *p.MaritalStatus
	}
	if a := p.Address; a != nil {
		for key, v := range map[string]string{
			"street":      a.Street,
			"city":        a.City,
			"state":       a.State,
			"country":     a.Country,
			"postal_code": a.PostalCode,
		} {
			if v != "" {
				set["profile.address."+key] = v
			}
		}
	}
	if p.MainPhone != nil {
		v := normalize.Phone(*p.MainPhone)
		if v == "" {
			return nil, apperr.Validation("main phone cannot be empty")
		}
		set["profile.phone.main_phone"] = v
	}
	if p.OtherPhones != nil {
		others := make([]string, 0, len(p.OtherPhones))
		for _, ph := range p.OtherPhones {
			if v := normalize.Phone(ph); v != "" {
				others = append(others, v)
			}
		}
		set["profile.phone.other_phones"] = others
	}
	if p.Email != nil {
		v := normalize.Email(*p.Email)
		if v == "" {
			return nil, apperr.Validation("email cannot be empty")
		}
		set["profile.email"] = v
	}
	if p.EmploymentStatus != nil {
		set["profile.employment_status"] = *p.EmploymentStatus
	}
	if p.EducationalLevel != nil {
		set["profile.educational_level"] = *p.EducationalLevel
	}
	if p.HealthStatus != nil {
		set["profile.health_status"] = *p.HealthStatus
	}
	if p.IsWorker != nil {
		set["profile.is_worker"] = *p.IsWorker
	}
	if p.IsActive != nil {
		set["profile.is_active"] = *p.IsActive
	}
	if p.ContactType != nil {
		set["contact_type"] = *p.ContactType
	}
	if p.MemberStatus != nil {
		set["member_status"] = *p.MemberStatus
	}
	if p.MaturityLevel != nil {
		set["maturity_level"] = *p.MaturityLevel
	}
	if p.HowDidYouHear != nil {
		set["how_did_you_hear"] = htmlsanitize.Text(*p.HowDidYouHear)
	}
	if len(set) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	return set, nil
}
