package tenancy

import (
	"context"
	"errors"

	"github.com/dalemusser/shepherd/internal/app/store/audit"
	levelstore "github.com/dalemusser/shepherd/internal/app/store/levels"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/normalize"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// LevelInput describes a new rung in a church network.
type LevelInput struct {
	Name        string
	Order       int
	ParentLevel *primitive.ObjectID
	OwnedBy     primitive.ObjectID
}

// CreateLevel adds a level to the network owned by in.OwnedBy. The order cap
// is checked before anything is written.
func (s *Service) CreateLevel(ctx context.Context, in LevelInput) (models.Level, error) {
	in.Name = normalize.Name(in.Name)
	if in.Name == "" {
		return models.Level{}, apperr.Validation("level name is required")
	}
	if in.Order < 0 || in.Order > models.MaxLevelOrder {
		return models.Level{}, mapLevelErr(levelstore.ErrInvalidOrder, "")
	}
	owning, err := s.churches.GetByID(ctx, in.OwnedBy)
	if err != nil {
		return models.Level{}, mapChurchErr(err, in.OwnedBy)
	}
	if !owning.IsHQ {
		return models.Level{}, apperr.Validation("levels belong to the headquarters church")
	}

	owner := in.OwnedBy
	parentID := ""
	if in.ParentLevel != nil {
		parentID = in.ParentLevel.Hex()
		parent, err := s.levels.GetByID(ctx, *in.ParentLevel)
		if err != nil {
			return models.Level{}, mapLevelErr(err, parentID)
		}
		// A parent from another network is reported as missing.
		if parent.OwnedBy == nil || *parent.OwnedBy != owner {
			return models.Level{}, mapLevelErr(mongo.ErrNoDocuments, parentID)
		}
	}
	lvl, err := s.levels.Create(ctx, models.Level{
		Name:        in.Name,
		Order:       in.Order,
		ParentLevel: in.ParentLevel,
		OwnedBy:     &owner,
	})
	if err != nil {
		return models.Level{}, mapLevelErr(err, parentID)
	}

	s.log.Info("level created", zap.String("level_id", lvl.ID.Hex()), zap.String("path", lvl.Path))
	s.audit.Admin(ctx, audit.EventLevelCreated, owner, actorID(ctx), map[string]string{"path": lvl.Path})
	return lvl, nil
}

// RenameLevel changes a level's name and recomputes its own path.
// Descendant levels keep the path they were saved with.
func (s *Service) RenameLevel(ctx context.Context, id primitive.ObjectID, name string) (models.Level, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Level{}, apperr.Validation("level name is required")
	}
	lvl, err := s.levels.Rename(ctx, id, name)
	if err != nil {
		return models.Level{}, mapLevelErr(err, id.Hex())
	}
	return lvl, nil
}

// NetworkOwner returns the HQ church whose level tree churchID belongs to.
func (s *Service) NetworkOwner(ctx context.Context, churchID primitive.ObjectID) (primitive.ObjectID, error) {
	c, err := s.churches.GetByID(ctx, churchID)
	if err != nil {
		return primitive.NilObjectID, mapChurchErr(err, churchID)
	}
	if c.IsHQ {
		return c.ID, nil
	}
	lvl, err := s.levels.GetByID(ctx, c.Level)
	if err != nil {
		return primitive.NilObjectID, mapLevelErr(err, c.Level.Hex())
	}
	if lvl.OwnedBy == nil {
		return primitive.NilObjectID, apperr.Invariant(apperr.ReasonInvalidLevel, "church level has no owner")
	}
	return *lvl.OwnedBy, nil
}

// GetLevel returns levelID if it is part of churchID's network.
func (s *Service) GetLevel(ctx context.Context, churchID, levelID primitive.ObjectID) (models.Level, error) {
	owner, err := s.NetworkOwner(ctx, churchID)
	if err != nil {
		return models.Level{}, err
	}
	lvl, err := s.levels.GetByID(ctx, levelID)
	if err != nil {
		return models.Level{}, mapLevelErr(err, levelID.Hex())
	}
	if lvl.OwnedBy == nil || *lvl.OwnedBy != owner {
		return models.Level{}, mapLevelErr(mongo.ErrNoDocuments, levelID.Hex())
	}
	return lvl, nil
}

// ListLevels returns the levels of the network owned by ownerID.
func (s *Service) ListLevels(ctx context.Context, ownerID primitive.ObjectID) ([]models.Level, error) {
	out, err := s.levels.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return out, nil
}

// ResolveLevelPath rebuilds a level's path from the live names of its
// ancestors. It fails with NotFound when any ancestor is missing.
func (s *Service) ResolveLevelPath(ctx context.Context, levelID primitive.ObjectID) (string, error) {
	var names []string
	id := levelID
	// A well-formed chain is at most MaxLevelOrder+1 deep; anything longer is a cycle.
	for depth := 0; depth <= models.MaxLevelOrder+1; depth++ {
		lvl, err := s.levels.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return "", mapLevelErr(err, id.Hex())
			}
			return "", apperr.FromStorage(err)
		}
		names = append(names, lvl.Name)
		if lvl.ParentLevel == nil {
			path := ""
			for i := len(names) - 1; i >= 0; i-- {
				path = models.LevelPath(path, names[i])
			}
			return path, nil
		}
		id = *lvl.ParentLevel
	}
	return "", apperr.Invariant(apperr.ReasonLevelOrder, "level chain is deeper than the order cap")
}
