// internal/app/features/churches/handler.go
package churches

import (
	"context"
	"net/http"

	"github.com/dalemusser/shepherd/internal/app/features/shared/httpjson"
	"github.com/dalemusser/shepherd/internal/app/services/tenancy"
	churchstore "github.com/dalemusser/shepherd/internal/app/store/churches"
	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/timeouts"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxLogoBytes caps logo uploads.
const MaxLogoBytes = 5 << 20

// Handler serves church onboarding, profile and level endpoints.
type Handler struct {
	Tenancy  *tenancy.Service
	WriteErr auth.ErrorWriter
	Log      *zap.Logger
}

func NewHandler(svc *tenancy.Service, writeErr auth.ErrorWriter, logger *zap.Logger) *Handler {
	return &Handler{Tenancy: svc, WriteErr: writeErr, Log: logger}
}

// churchID returns the church the gate authorized.
func churchID(r *http.Request) primitive.ObjectID {
	d, _ := authz.FromContext(r.Context())
	return d.ChurchID
}

type churchRequest struct {
	Name     string                `json:"name"`
	Location models.Location       `json:"location"`
	Contact  models.ChurchContact  `json:"contact"`
	Settings models.ChurchSettings `json:"settings"`
}

type founderRequest struct {
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Gender    models.Gender `json:"gender"`
}

type onboardRequest struct {
	churchRequest
	ParentChurch *primitive.ObjectID `json:"parent_church,omitempty"`
	LevelID      *primitive.ObjectID `json:"level_id,omitempty"`
	Founder      founderRequest      `json:"founder"`
}

func (c churchRequest) input(parent *primitive.ObjectID) tenancy.ChurchInput {
	return tenancy.ChurchInput{
		Name:         c.Name,
		ParentChurch: parent,
		Location:     c.Location,
		Contact:      c.Contact,
		Settings:     c.Settings,
	}
}

// POST /churches
//
// The signed-in user founds the church. Without level_id a headquarters
// church is created.
func (h *Handler) ServeOnboard(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.WriteErr(w, r, apperr.Unauthorized(apperr.ReasonInvalidToken, "sign in required"))
		return
	}
	var in onboardRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	out, err := h.Tenancy.OnboardChurch(ctx, tenancy.OnboardInput{
		Church:  in.input(in.ParentChurch),
		LevelID: in.LevelID,
		Founder: tenancy.FounderInput(in.Founder),
	}, u.ID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, out)
}

// GET /churches/hq
func (h *Handler) ServeListHQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Tenancy.ListHQChurches(ctx)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	if out == nil {
		out = []models.Church{}
	}
	httpjson.OK(w, map[string]any{"churches": out})
}

// GET /churches/{churchID}
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Tenancy.GetChurch(ctx, churchID(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}

// PATCH /churches/{churchID}
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	var in churchRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Tenancy.UpdateChurch(ctx, churchID(r), churchstore.Patch{
		Name:     in.Name,
		Location: in.Location,
		Contact:  in.Contact,
		Settings: in.Settings,
	})
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}

// DELETE /churches/{churchID}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Tenancy.DeleteChurch(ctx, churchID(r)); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.NoContent(w)
}

// GET /churches/{churchID}/summary
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sum, err := h.Tenancy.Summary(ctx, churchID(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, sum)
}

// GET /churches/{churchID}/roles
func (h *Handler) ServeListRoles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	roles, err := h.Tenancy.ListRoles(ctx, churchID(r))
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, roles)
}

// PUT /churches/{churchID}/logo
//
// The body is the raw image; Content-Type names its format.
func (h *Handler) ServeLogo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, MaxLogoBytes)
	c, err := h.Tenancy.SetChurchLogo(ctx, churchID(r), r.Header.Get("Content-Type"), body)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.OK(w, c)
}

type childRequest struct {
	churchRequest
	LevelID primitive.ObjectID `json:"level_id"`
}

// POST /churches/{churchID}/children
//
// Creates a church under the authorized church on one of its network's levels.
func (h *Handler) ServeCreateChild(w http.ResponseWriter, r *http.Request) {
	var in childRequest
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	parent := churchID(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if _, err := h.Tenancy.GetLevel(ctx, parent, in.LevelID); err != nil {
		h.WriteErr(w, r, err)
		return
	}
	c, err := h.Tenancy.CreateChildChurch(ctx, in.input(&parent), in.LevelID)
	if err != nil {
		h.WriteErr(w, r, err)
		return
	}
	httpjson.Created(w, c)
}
