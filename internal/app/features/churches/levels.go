// internal/app/features/churches/levels.go
package churches

import (
	"context"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	"github.com/dalemusser/shepherd/internal/app/services/tenancy"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GET /churches/{churchID}/levels
func (h *Handler) ServeListLevels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owner, err := h.Tenancy.NetworkOwner(ctx, churchID(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	out, err := h.Tenancy.ListLevels(ctx, owner)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if out == nil {
		out = []models.Level{}
	}
	httpjson.OK(w, map[string]any{"levels": out})
}

type levelRequest struct {
	Name        string              `json:"name"`
	Order       int                 `json:"order"`
	ParentLevel *primitive.ObjectID `json:"parent_level,omitempty"`
}

// POST /churches/{churchID}/levels
func (h *Handler) ServeCreateLevel(w http.ResponseWriter, r *http.Request) {
	var in levelRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lvl, err := h.Tenancy.CreateLevel(ctx, tenancy.LevelInput{
		Name:        in.Name,
		Order:       in.Order,
		ParentLevel: in.ParentLevel,
		OwnedBy:     churchID(r),
	})
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, lvl)
}

// level loads the {levelID} in the authorized church's network.
func (h *Handler) level(ctx context.Context, r *http.Request) (models.Level, error) {
	id, err := httpjson.ObjectID(r, "levelID")
	if err != nil {
		return models.Level{}, err
	}
	return h.Tenancy.GetLevel(ctx, churchID(r), id)
}

// PATCH /churches/{churchID}/levels/{levelID}
func (h *Handler) ServeRenameLevel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lvl, err := h.level(ctx, r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	lvl, err = h.Tenancy.RenameLevel(ctx, lvl.ID, in.Name)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, lvl)
}

// GET /churches/{churchID}/levels/{levelID}/path
//
// Rebuilds the path from current ancestor names, unlike the stored path.
func (h *Handler) ServeLevelPath(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lvl, err := h.level(ctx, r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	path, err := h.Tenancy.ResolveLevelPath(ctx, lvl.ID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, map[string]string{"level_id": lvl.ID.Hex(), "stored": lvl.Path, "resolved": path})
}

// GET /churches/{churchID}/levels/{levelID}/churches
func (h *Handler) ServeLevelChurches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lvl, err := h.level(ctx, r)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	out, err := h.Tenancy.ListChurchesByLevel(ctx, lvl.ID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if out == nil {
		out = []models.Church{}
	}
	httpjson.OK(w, map[string]any{"churches": out})
}
