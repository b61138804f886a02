// Package tenancy owns the church hierarchy: churches, their levels and the
// default roles every church starts with.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	churchstore "github.com/dalemusser/shepherd/internal/app/store/churches"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	levelstore "github.com/dalemusser/shepherd/internal/app/store/levels"
	rolestore "github.com/dalemusser/shepherd/internal/app/store/roles"
	userstore "github.com/dalemusser/shepherd/internal/app/store/users"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auditlog"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/normalize"
	"github.com/dalemusser/shepherd/internal/app/system/txn"
	"github.com/dalemusser/shepherd/internal/app/system/uploads"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RoleCreator persists a batch of roles.
type RoleCreator interface {
	CreateMany(ctx context.Context, roles []models.Role) ([]models.Role, error)
}

type Service struct {
	db       *mongo.Database
	churches *churchstore.Store
	levels   *levelstore.Store
	users    *userstore.Store
	contacts *contactstore.Store
	roles    RoleCreator
	roleList *rolestore.Store
	objects  storage.Store
	audit    *auditlog.Logger
	log      *zap.Logger
}

// New wires the service to db. objects may be nil when uploads are disabled.
func New(db *mongo.Database, objects storage.Store, audit *auditlog.Logger, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		churches: churchstore.New(db),
		levels:   levelstore.New(db),
		users:    userstore.New(db),
		contacts: contactstore.New(db),
		roles:    rolestore.New(db),
		roleList: rolestore.New(db),
		objects:  objects,
		audit:    audit,
		log:      log,
	}
}

// WithRoleCreator replaces the role persistence used during onboarding.
func (s *Service) WithRoleCreator(r RoleCreator) *Service {
	s.roles = r
	return s
}

// ChurchInput is the data a new church is created from.
type ChurchInput struct {
	Name         string
	ParentChurch *primitive.ObjectID
	Location     models.Location
	Contact      models.ChurchContact
	Settings     models.ChurchSettings
}

func (in *ChurchInput) normalize() error {
	in.Name = normalize.Name(in.Name)
	in.Contact.Email = normalize.Email(in.Contact.Email)
	in.Contact.Phone = normalize.Phone(in.Contact.Phone)
	if in.Name == "" {
		return apperr.Validation("church name is required")
	}
	if in.Contact.Email == "" || in.Contact.Phone == "" {
		return apperr.Validation("church email and phone are required")
	}
	return nil
}

func (in ChurchInput) church(createdBy *primitive.ObjectID) models.Church {
	return models.Church{
		Name:         in.Name,
		ParentChurch: in.ParentChurch,
		Location:     in.Location,
		Contact:      in.Contact,
		Settings:     in.Settings,
		CreatedBy:    createdBy,
	}
}

func actorID(ctx context.Context) *primitive.ObjectID {
	if u, ok := auth.FromContext(ctx); ok {
		id := u.ID
		return &id
	}
	return nil
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.Run(ctx, s.db, s.log, fn)
}

// checkChurchContact rejects a church email or phone already used by a live church.
func (s *Service) checkChurchContact(ctx context.Context, c models.ChurchContact, exclude primitive.ObjectID) error {
	taken, err := s.churches.ContactTaken(ctx, c.Email, c.Phone, exclude)
	if err != nil {
		return apperr.FromStorage(err)
	}
	if taken {
		return apperr.Conflict(apperr.ReasonDuplicateChurch, "church already exists")
	}
	return nil
}

func mapChurchErr(err error, id primitive.ObjectID) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("church", id.Hex())
	case errors.Is(err, churchstore.ErrDuplicateChurch):
		return apperr.Conflict(apperr.ReasonDuplicateChurch, "church already exists")
	}
	return apperr.FromStorage(err)
}

func mapLevelErr(err error, id string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, levelstore.ErrParentNotFound):
		e := apperr.NotFound("level", id)
		e.Reason = apperr.ReasonInvalidLevel
		return e
	case errors.Is(err, levelstore.ErrInvalidOrder):
		return apperr.Invariant(apperr.ReasonLevelOrder, fmt.Sprintf("level order must be between 0 and %d", models.MaxLevelOrder))
	case errors.Is(err, levelstore.ErrDuplicateLevel):
		return apperr.Conflict(apperr.ReasonDuplicateLevel, "a level with this name already exists")
	}
	return apperr.FromStorage(err)
}

// createRoot creates the HQ level, the church and back-patches the level
// owner. The level has to exist before the church that references it, and
// the owner is only known once the church is stored.
func (s *Service) createRoot(ctx context.Context, in ChurchInput, createdBy *primitive.ObjectID) (models.Church, error) {
	lvl, err := s.levels.Create(ctx, models.Level{Name: models.RootLevelName, Order: 0})
	if err != nil {
		return models.Church{}, mapLevelErr(err, "")
	}

	c := in.church(createdBy)
	c.IsHQ = true
	c.ParentChurch = nil
	c.Level = lvl.ID
	c, err = s.churches.Create(ctx, c)
	if err != nil {
		return models.Church{}, mapChurchErr(err, primitive.NilObjectID)
	}

	if err := s.levels.SetOwner(ctx, lvl.ID, c.ID); err != nil {
		return models.Church{}, mapLevelErr(err, lvl.ID.Hex())
	}
	return c, nil
}

// foundRoot creates the HQ church, its default roles and makes it the
// founder's main church. Callers run it inside a transaction after
// requireNoMainChurch.
func (s *Service) foundRoot(ctx context.Context, in ChurchInput, founderUserID primitive.ObjectID) (models.Church, map[string]models.Role, error) {
	c, err := s.createRoot(ctx, in, &founderUserID)
	if err != nil {
		return models.Church{}, nil, err
	}
	roles, err := s.BootstrapDefaultRoles(ctx, c.ID, true)
	if err != nil {
		return models.Church{}, nil, err
	}
	if err := s.users.SetMainChurch(ctx, founderUserID, c.ID); err != nil {
		return models.Church{}, nil, apperr.FromStorage(err)
	}
	return c, roles, nil
}

func (s *Service) createChild(ctx context.Context, in ChurchInput, levelID primitive.ObjectID, createdBy *primitive.ObjectID) (models.Church, error) {
	if _, err := s.levels.GetByID(ctx, levelID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Church{}, &apperr.Error{
				Kind:   apperr.KindNotFound,
				Entity: "level",
				ID:     levelID.Hex(),
				Reason: apperr.ReasonInvalidLevel,
				Msg:    "invalid level",
			}
		}
		return models.Church{}, apperr.FromStorage(err)
	}
	if in.ParentChurch != nil {
		if _, err := s.churches.GetByID(ctx, *in.ParentChurch); err != nil {
			return models.Church{}, mapChurchErr(err, *in.ParentChurch)
		}
	}

	c := in.church(createdBy)
	c.IsHQ = false
	c.Level = levelID
	c, err := s.churches.Create(ctx, c)
	if err != nil {
		return models.Church{}, mapChurchErr(err, primitive.NilObjectID)
	}
	return c, nil
}

// BootstrapDefaultRoles stores the default role set for churchID and
// returns it keyed by role name. Call it inside the transaction that created
// the church.
func (s *Service) BootstrapDefaultRoles(ctx context.Context, churchID primitive.ObjectID, isRoot bool) (map[string]models.Role, error) {
	tpls := permissions.DefaultRoles(isRoot)
	roles := make([]models.Role, len(tpls))
	for i, t := range tpls {
		roles[i] = models.Role{
			Name:        t.Name,
			Description: t.Description,
			Permissions: t.Permissions,
			Church:      churchID,
		}
	}
	created, err := s.roles.CreateMany(ctx, roles)
	if err != nil {
		if errors.Is(err, rolestore.ErrDuplicateRole) {
			return nil, apperr.Conflict(apperr.ReasonDuplicateRole, "church already has default roles")
		}
		return nil, apperr.FromStorage(err)
	}
	out := make(map[string]models.Role, len(created))
	for _, r := range created {
		out[r.Name] = r
	}
	return out, nil
}

func (s *Service) requireNoMainChurch(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("user", userID.Hex())
		}
		return models.User{}, apperr.FromStorage(err)
	}
	if u.MainChurch != nil {
		return models.User{}, apperr.Conflict(apperr.ReasonHasMainChurch, "user already founded a root church")
	}
	return u, nil
}

// CreateRootChurch creates an HQ church founded by founderUserID together
// with its HQ level and default roles, and makes it the founder's main
// church. A founder can start only one HQ church.
func (s *Service) CreateRootChurch(ctx context.Context, in ChurchInput, founderUserID primitive.ObjectID) (models.Church, error) {
	if err := in.normalize(); err != nil {
		return models.Church{}, err
	}
	var out models.Church
	err := s.run(ctx, func(ctx context.Context) error {
		if _, err := s.requireNoMainChurch(ctx, founderUserID); err != nil {
			return err
		}
		if err := s.checkChurchContact(ctx, in.Contact, primitive.NilObjectID); err != nil {
			return err
		}
		c, _, err := s.foundRoot(ctx, in, founderUserID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.Church{}, err
	}
	s.audit.Admin(ctx, audit.EventChurchCreated, out.ID, &founderUserID, map[string]string{"name": out.Name, "hq": "true"})
	return out, nil
}

// CreateChildChurch creates a church attached to an existing level, with
// the child default roles.
func (s *Service) CreateChildChurch(ctx context.Context, in ChurchInput, levelID primitive.ObjectID) (models.Church, error) {
	if err := in.normalize(); err != nil {
		return models.Church{}, err
	}
	actor := actorID(ctx)
	var out models.Church
	err := s.run(ctx, func(ctx context.Context) error {
		if err := s.checkChurchContact(ctx, in.Contact, primitive.NilObjectID); err != nil {
			return err
		}
		c, err := s.createChild(ctx, in, levelID, actor)
		if err != nil {
			return err
		}
		if _, err := s.BootstrapDefaultRoles(ctx, c.ID, false); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.Church{}, err
	}
	s.audit.Admin(ctx, audit.EventChurchCreated, out.ID, actor, map[string]string{"name": out.Name, "hq": "false"})
	return out, nil
}

// FounderInput is the founding member's contact data. Empty fields fall
// back to the founder's account.
type FounderInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Gender    models.Gender
}

// OnboardInput describes a church onboarding. A root church is created when
// LevelID is nil.
type OnboardInput struct {
	Church  ChurchInput
	LevelID *primitive.ObjectID
	Founder FounderInput
}

// Onboarding is the result of OnboardChurch.
type Onboarding struct {
	Church  models.Church          `json:"church"`
	Roles   map[string]models.Role `json:"roles"`
	Founder models.Contact         `json:"founder"`
}

// OnboardChurch creates a church, its level (for a root church), its
// default roles, updates the founder's account and creates the founding
// member contact. Everything commits as one unit.
func (s *Service) OnboardChurch(ctx context.Context, in OnboardInput, founderUserID primitive.ObjectID) (Onboarding, error) {
	if err := in.Church.normalize(); err != nil {
		return Onboarding{}, err
	}
	isRoot := in.LevelID == nil

	var out Onboarding
	err := s.run(ctx, func(ctx context.Context) error {
		var (
			founder models.User
			err     error
		)
		if isRoot {
			founder, err = s.requireNoMainChurch(ctx, founderUserID)
		} else {
			founder, err = s.users.GetByID(ctx, founderUserID)
			if errors.Is(err, mongo.ErrNoDocuments) {
				err = apperr.NotFound("user", founderUserID.Hex())
			}
		}
		if err != nil {
			return apperr.FromStorage(err)
		}
		if err := s.checkChurchContact(ctx, in.Church.Contact, primitive.NilObjectID); err != nil {
			return err
		}

		var (
			c     models.Church
			roles map[string]models.Role
		)
		if isRoot {
			c, roles, err = s.foundRoot(ctx, in.Church, founderUserID)
		} else {
			c, roles, err = s.foundChild(ctx, in.Church, *in.LevelID, founderUserID)
		}
		if err != nil {
			return err
		}

		roleName := permissions.RoleAdmin
		if isRoot {
			roleName = permissions.RoleSuperAdmin
		}
		role := roles[roleName]
		member, err := s.contacts.Insert(ctx, founderContact(founder, in.Founder, c.ID, role.ID))
		if err != nil {
			if errors.Is(err, contactstore.ErrDuplicateContact) {
				return apperr.Conflict(apperr.ReasonDuplicateContact, "contact already exists")
			}
			return apperr.FromStorage(err)
		}

		out = Onboarding{Church: c, Roles: roles, Founder: member}
		return nil
	})
	if err != nil {
		s.log.Warn("church onboarding failed", zap.String("founder", founderUserID.Hex()), zap.Error(err))
		return Onboarding{}, err
	}

	s.log.Info("church onboarded",
		zap.String("church_id", out.Church.ID.Hex()),
		zap.Bool("hq", out.Church.IsHQ))
	s.audit.Admin(ctx, audit.EventChurchCreated, out.Church.ID, &founderUserID, map[string]string{
		"name": out.Church.Name,
		"hq":   fmt.Sprint(out.Church.IsHQ),
	})
	return out, nil
}

// foundChild creates a child church with its default roles and adds it to
// the founder's churches as Admin.
func (s *Service) foundChild(ctx context.Context, in ChurchInput, levelID, founderUserID primitive.ObjectID) (models.Church, map[string]models.Role, error) {
	c, err := s.createChild(ctx, in, levelID, &founderUserID)
	if err != nil {
		return models.Church{}, nil, err
	}
	roles, err := s.BootstrapDefaultRoles(ctx, c.ID, false)
	if err != nil {
		return models.Church{}, nil, err
	}
	if err := s.users.AddChurch(ctx, founderUserID, c.ID, models.UserRoleAdmin); err != nil {
		return models.Church{}, nil, apperr.FromStorage(err)
	}
	return c, roles, nil
}

func founderContact(u models.User, in FounderInput, churchID, roleID primitive.ObjectID) models.Contact {
	pick := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return fallback
	}
	userID := u.ID
	return models.Contact{
		UserID:   &userID,
		ChurchID: churchID,
		OrgRole:  &roleID,
		Profile: models.Profile{
			FirstName: pick(in.FirstName, u.FirstName),
			LastName:  pick(in.LastName, u.LastName),
			Email:     normalize.Email(pick(in.Email, u.EmailAddr())),
			Phone:     models.Phone{MainPhone: normalize.Phone(pick(in.Phone, u.PhoneNumber()))},
			Gender:    in.Gender,
			IsActive:  true,
		},
		ContactType:  models.ContactTypeMember,
		Verification: models.VerificationIncomplete,
		CreatedBy:    &userID,
	}
}

// UpdateChurch merges the non-empty fields of patch into the church.
func (s *Service) UpdateChurch(ctx context.Context, id primitive.ObjectID, patch churchstore.Patch) (models.Church, error) {
	patch.Name = normalize.Name(patch.Name)
	patch.Contact.Email = normalize.Email(patch.Contact.Email)
	patch.Contact.Phone = normalize.Phone(patch.Contact.Phone)

	if _, err := s.churches.GetByID(ctx, id); err != nil {
		return models.Church{}, mapChurchErr(err, id)
	}
	if err := s.checkChurchContact(ctx, patch.Contact, id); err != nil {
		return models.Church{}, err
	}
	if err := s.churches.Update(ctx, id, patch); err != nil {
		return models.Church{}, mapChurchErr(err, id)
	}
	c, err := s.churches.GetByID(ctx, id)
	if err != nil {
		return models.Church{}, mapChurchErr(err, id)
	}
	s.audit.Admin(ctx, audit.EventChurchUpdated, id, actorID(ctx), nil)
	return c, nil
}

// DeleteChurch removes the church and every user reference to it.
func (s *Service) DeleteChurch(ctx context.Context, id primitive.ObjectID) error {
	var detached int64
	err := s.run(ctx, func(ctx context.Context) error {
		n, err := s.churches.Delete(ctx, id)
		if err != nil {
			return apperr.FromStorage(err)
		}
		if n == 0 {
			return apperr.NotFound("church", id.Hex())
		}
		detached, err = s.users.DetachChurch(ctx, id)
		return apperr.FromStorage(err)
	})
	if err != nil {
		return err
	}
	s.log.Info("church deleted", zap.String("church_id", id.Hex()), zap.Int64("users_detached", detached))
	s.audit.Admin(ctx, audit.EventChurchDeleted, id, actorID(ctx), nil)
	return nil
}

// GetChurch returns a live church.
func (s *Service) GetChurch(ctx context.Context, id primitive.ObjectID) (models.Church, error) {
	c, err := s.churches.GetByID(ctx, id)
	if err != nil {
		return models.Church{}, mapChurchErr(err, id)
	}
	return c, nil
}

func (s *Service) ListHQChurches(ctx context.Context) ([]models.Church, error) {
	out, err := s.churches.ListHQ(ctx)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return out, nil
}

// ListChurchesByLevel returns the live churches on levelID.
func (s *Service) ListChurchesByLevel(ctx context.Context, levelID primitive.ObjectID) ([]models.Church, error) {
	out, err := s.churches.ListByLevel(ctx, levelID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return out, nil
}

// Summary holds headline counts for a church.
type Summary struct {
	ChurchID primitive.ObjectID `json:"church_id"`
	Members  int64              `json:"members"`
	Contacts int64              `json:"contacts"`
	Levels   int64              `json:"levels"`
}

// ListRoles returns the roles of churchID, oldest first.
func (s *Service) ListRoles(ctx context.Context, churchID primitive.ObjectID) ([]models.Role, error) {
	roles, err := s.roleList.ListByChurch(ctx, churchID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// Summary counts members, other contacts and the network's levels in parallel.
func (s *Service) Summary(ctx context.Context, churchID primitive.ObjectID) (Summary, error) {
	owner, err := s.NetworkOwner(ctx, churchID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{ChurchID: churchID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.contacts.Count(gctx, churchID, contactstore.ListFilter{Types: []models.ContactType{models.ContactTypeMember}})
		sum.Members = n
		return err
	})
	g.Go(func() error {
		n, err := s.contacts.Count(gctx, churchID, contactstore.ListFilter{Types: []models.ContactType{
			models.ContactTypeRegular, models.ContactTypeVisitor, models.ContactTypeParticipant,
			models.ContactTypeInProgress, models.ContactTypeUndefined,
		}})
		sum.Contacts = n
		return err
	})
	g.Go(func() error {
		n, err := s.levels.CountByOwner(gctx, owner)
		sum.Levels = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, apperr.FromStorage(err)
	}
	return sum, nil
}

// SetChurchLogo uploads a logo image and stores its URL in settings.logo.
func (s *Service) SetChurchLogo(ctx context.Context, churchID primitive.ObjectID, contentType string, body io.Reader) (models.Church, error) {
	if s.objects == nil {
		return models.Church{}, apperr.Validation("file uploads are disabled")
	}
	if _, err := s.churches.GetByID(ctx, churchID); err != nil {
		return models.Church{}, mapChurchErr(err, churchID)
	}
	url, err := uploads.PutImage(ctx, s.objects, "logos/"+churchID.Hex(), contentType, body)
	if errors.Is(err, uploads.ErrUnsupportedType) {
		return models.Church{}, apperr.Validation("logo must be a JPEG, PNG, GIF or WebP image")
	}
	if err != nil {
		s.log.Error("logo upload failed", zap.String("church_id", churchID.Hex()), zap.Error(err))
		return models.Church{}, fmt.Errorf("upload logo: %w", err)
	}
	return s.UpdateChurch(ctx, churchID, churchstore.Patch{Settings: models.ChurchSettings{Logo: url}})
}
