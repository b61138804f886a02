package members

import (
	"context"
	"fmt"
	"time"

	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// Period names a join-statistics window.
type Period string

const (
	PeriodToday       Period = "today"
	PeriodLastWeek    Period = "last_week"
	PeriodLastMonth   Period = "last_month"
	PeriodLastQuarter Period = "last_quarter"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodToday, PeriodLastWeek, PeriodLastMonth, PeriodLastQuarter:
		return true
	}
	return false
}

// Window returns the half-open UTC interval [start, end) for p relative to
// now. Weeks start on Monday. Last week, month and quarter are the previous
// complete calendar periods; today runs from midnight to now.
func Window(p Period, now time.Time) (start, end time.Time) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodLastWeek:
		weekday := (int(midnight.Weekday()) + 6) % 7
		thisWeek := midnight.AddDate(0, 0, -weekday)
		return thisWeek.AddDate(0, 0, -7), thisWeek
	case PeriodLastMonth:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return thisMonth.AddDate(0, -1, 0), thisMonth
	case PeriodLastQuarter:
		q := (int(now.Month()) - 1) / 3
		thisQuarter := time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		return thisQuarter.AddDate(0, -3, 0), thisQuarter
	}
	return midnight, now.Add(time.Nanosecond)
}

// AgeGroup is one bucket of the age histogram.
type AgeGroup struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var ageBuckets = []struct {
	label string
	max   int
}{
	{"0-18", 18},
	{"19-30", 30},
	{"31-40", 40},
	{"41-50", 50},
	{"51-60", 60},
	{"61-70", 70},
	{"71+", int(^uint(0) >> 1)},
}

// AgeGroups buckets ages into the fixed ranges, all present even when empty.
func AgeGroups(ages []int) []AgeGroup {
	out := make([]AgeGroup, len(ageBuckets))
	for i, b := range ageBuckets {
		out[i].Label = b.label
	}
	for _, age := range ages {
		for i, b := range ageBuckets {
			if age <= b.max {
				out[i].Count++
				break
			}
		}
	}
	return out
}

type GenderCount struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// Joined is a member in a join-statistics listing.
type Joined struct {
	ID          primitive.ObjectID `json:"id"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name,omitempty"`
	Email       string             `json:"email,omitempty"`
	Phone       string             `json:"phone"`
	DateOfBirth *time.Time         `json:"date_of_birth,omitempty"`
	Age         int                `json:"age"`
	JoinedAt    time.Time          `json:"joined_at"`
}

type Stats struct {
	Period       Period      `json:"period"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Joined       int         `json:"joined"`
	TotalMembers int64       `json:"total_members"`
	Gender       GenderCount `json:"gender"`
	AgeGroups    []AgeGroup  `json:"age_groups"`
	Members      []Joined    `json:"members"`
}

// JoinedStats reports members of churchID who joined during p, with gender
// counts and an age histogram, alongside the church's total member count.
func (s *Service) JoinedStats(ctx context.Context, churchID primitive.ObjectID, p Period) (Stats, error) {
	if p == "" {
		p = PeriodToday
	}
	if !p.Valid() {
		return Stats{}, apperr.Validation(fmt.Sprintf("invalid period %q", p))
	}
	now := s.now()
	start, end := Window(p, now)
	st := Stats{Period: p, Start: start, End: end, Members: []Joined{}}

	var joined []models.Contact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		joined, err = s.store.MembersJoined(gctx, churchID, start, end)
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, churchID, contactstore.ListFilter{Types: []models.ContactType{models.ContactTypeMember}})
		st.TotalMembers = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, apperr.FromStorage(err)
	}

	ages := make([]int, 0, len(joined))
	for _, c := range joined {
		switch c.Profile.Gender {
		case models.GenderMale:
			st.Gender.Male++
		case models.GenderFemale:
			st.Gender.Female++
		}
		age := models.DeriveAge(c.Profile.DateOfBirth, now)
		ages = append(ages, age)
		st.Members = append(st.Members, Joined{
			ID:          c.ID,
			FirstName:   c.Profile.FirstName,
			LastName:    c.Profile.LastName,
			Email:       c.Profile.Email,
			Phone:       c.Profile.Phone.MainPhone,
			DateOfBirth: c.Profile.DateOfBirth,
			Age:         age,
			JoinedAt:    c.CreatedAt,
		})
	}
	st.Joined = len(joined)
	st.AgeGroups = AgeGroups(ages)
	return st, nil
}
