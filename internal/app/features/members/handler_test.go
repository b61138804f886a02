package members_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	errorsfeature "github.com/dalemusser/shepherd/internal/app/features/errors"
	"github.com/dalemusser/shepherd/internal/app/features/members"
	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	contactsvc "github.com/dalemusser/shepherd/internal/app/services/contacts"
	membersvc "github.com/dalemusser/shepherd/internal/app/services/members"
	contactstore "github.com/dalemusser/shepherd/internal/app/store/contacts"
	rolestore "github.com/dalemusser/shepherd/internal/app/store/roles"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/indexes"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
	"github.com/dalemusser/shepherd/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	router   http.Handler
	contacts *contactsvc.Service
	mail     *testutil.Outbox
	fx       *testutil.Fixtures
	ctx      context.Context
	church   models.Church
	roles    map[string]models.Role
	bearer   string
	base     string
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	log := zap.NewNop()
	tm := testutil.Tokens()
	mail := &testutil.Outbox{}
	ew := errorsfeature.NewWriter(log)
	gate := authz.NewGate(contactstore.New(db), rolestore.New(db), nil, log)
	cs := contactsvc.New(db, nil, nil, nil, log)
	accts := accounts.New(db, tm, mail, nil, log, accounts.Config{
		BaseURL:    "https://app.example.org",
		BcryptCost: bcrypt.MinCost,
	})
	h := members.NewHandler(membersvc.New(db, cs, log), accts, ew.Write, log)

	r := chi.NewRouter()
	r.Use(auth.RequireUser(tm, ew.Write, log))
	r.Mount("/churches/{churchID}/members", members.Routes(h, gate))
	r.Mount("/churches/{churchID}/invitations", members.InvitationRoutes(h, gate))
	r.Mount("/churches/{churchID}/me", members.SelfRoutes(h, gate))

	fx := testutil.NewFixtures(t, db)
	church, _ := fx.CreateHQChurch(ctx, "Grace Chapel", "hello@gracechapel.org", "15550001111")
	roles := fx.CreateDefaultRoles(ctx, church.ID, true)
	u := fx.CreateUser(ctx, "Abena", "abena@example.org")
	fx.CreateMember(ctx, church.ID, u.ID, roles[permissions.RoleAdmin].ID, "Abena", "15550002222")

	return &env{
		router:   r,
		contacts: cs,
		mail:     mail,
		fx:       fx,
		ctx:      ctx,
		church:   church,
		roles:    roles,
		bearer:   testutil.Bearer(t, tm, u),
		base:     "/churches/" + church.ID.Hex(),
	}
}

func TestCreateAndList(t *testing.T) {
	e := setup(t)

	rec := testutil.Call(t, e.router, http.MethodPost, e.base+"/members", e.bearer, map[string]any{
		"role":    "member",
		"profile": map[string]any{"first_name": "Kofi", "gender": "male", "phone": map[string]string{"main_phone": "15550003333"}},
	})
	rec.AssertStatus(t, http.StatusCreated)
	var m models.Contact
	rec.DecodeJSON(t, &m)
	if m.ContactType != models.ContactTypeMember || m.OrgRole == nil || *m.OrgRole != e.roles[permissions.RoleMember].ID {
		t.Errorf("member = %+v", m)
	}

	// A lead in the same church is not a member.
	e.fx.CreateContact(e.ctx, e.church.ID, "Visitor", "15550004444")

	rec = testutil.Call(t, e.router, http.MethodGet, e.base+"/members", e.bearer, nil)
	rec.AssertStatus(t, http.StatusOK)
	var out contactsvc.ListResult
	rec.DecodeJSON(t, &out)
	if len(out.Contacts) != 2 {
		t.Errorf("members = %d, want 2", len(out.Contacts))
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing role", map[string]any{"profile": map[string]any{"first_name": "Yaw", "phone": map[string]string{"main_phone": "15550005555"}}}, http.StatusBadRequest},
		{"unknown role", map[string]any{"role": "Deacon", "profile": map[string]any{"first_name": "Yaw", "phone": map[string]string{"main_phone": "15550005555"}}}, http.StatusNotFound},
		{"duplicate phone", map[string]any{"role": "Member", "profile": map[string]any{"first_name": "Kofi", "phone": map[string]string{"main_phone": "15550003333"}}}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.Call(t, e.router, http.MethodPost, e.base+"/members", e.bearer, tt.body)
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestVerificationAndDelete(t *testing.T) {
	e := setup(t)
	lead := e.fx.CreateContact(e.ctx, e.church.ID, "Visitor", "15550004444")
	u := e.fx.CreateUser(e.ctx, "Kofi", "kofi@example.org")
	m := e.fx.CreateMember(e.ctx, e.church.ID, u.ID, e.roles[permissions.RoleMember].ID, "Kofi", "15550003333")

	path := e.base + "/members/" + m.ID.Hex()
	rec := testutil.Call(t, e.router, http.MethodPut, path+"/verification", e.bearer, map[string]string{"verification": "verified"})
	rec.AssertStatus(t, http.StatusNoContent)
	rec = testutil.Call(t, e.router, http.MethodPut, path+"/verification", e.bearer, map[string]string{"verification": "maybe"})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.Call(t, e.router, http.MethodPut, e.base+"/members/"+lead.ID.Hex()+"/verification", e.bearer, map[string]string{"verification": "verified"})
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.Call(t, e.router, http.MethodDelete, path, e.bearer, nil)
	rec.AssertStatus(t, http.StatusNoContent)
	rec = testutil.Call(t, e.router, http.MethodDelete, path, e.bearer, nil)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestStats(t *testing.T) {
	e := setup(t)

	rec := testutil.Call(t, e.router, http.MethodGet, e.base+"/members/stats", e.bearer, nil)
	rec.AssertStatus(t, http.StatusOK)
	var st membersvc.Stats
	rec.DecodeJSON(t, &st)
	if st.Period != membersvc.PeriodToday || st.TotalMembers != 1 || st.Joined != 1 {
		t.Errorf("stats = %+v", st)
	}

	rec = testutil.Call(t, e.router, http.MethodGet, e.base+"/members/stats?period=last_quarter", e.bearer, nil)
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.Call(t, e.router, http.MethodGet, e.base+"/members/stats?period=forever", e.bearer, nil)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestInvite(t *testing.T) {
	e := setup(t)
	c, err := e.contacts.CreateContact(e.ctx, e.church.ID, contactsvc.Input{Profile: models.Profile{
		FirstName: "Esi",
		Email:     "esi@example.org",
		Phone:     models.Phone{MainPhone: "15550006666"},
	}})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	rec := testutil.Call(t, e.router, http.MethodPost, e.base+"/invitations", e.bearer, map[string]string{"contact_id": c.ID.Hex()})
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, `"email_sent":true`)
	if sent := e.mail.Sent(); len(sent) != 1 || sent[0].To != "esi@example.org" {
		t.Fatalf("sent = %+v", sent)
	}

	e.mail.Fail = errors.New("smtp down")
	rec = testutil.Call(t, e.router, http.MethodPost, e.base+"/invitations", e.bearer, map[string]string{"contact_id": c.ID.Hex()})
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, `"email_sent":false`)

	noEmail := e.fx.CreateContact(e.ctx, e.church.ID, "Yaw", "15550007777")
	rec = testutil.Call(t, e.router, http.MethodPost, e.base+"/invitations", e.bearer, map[string]string{"contact_id": noEmail.ID.Hex()})
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestPermissions(t *testing.T) {
	e := setup(t)
	u := e.fx.CreateUser(e.ctx, "Kofi", "kofi@example.org")
	e.fx.CreateMember(e.ctx, e.church.ID, u.ID, e.roles[permissions.RoleMember].ID, "Kofi", "15550003333")
	bearer := testutil.Bearer(t, testutil.Tokens(), u)

	testutil.Call(t, e.router, http.MethodGet, e.base+"/members", bearer, nil).AssertStatus(t, http.StatusForbidden)
	testutil.Call(t, e.router, http.MethodPost, e.base+"/invitations", bearer, map[string]string{"contact_id": u.ID.Hex()}).
		AssertStatus(t, http.StatusForbidden)
}

func TestSelfRoutes(t *testing.T) {
	e := setup(t)
	tm := testutil.Tokens()

	u := e.fx.CreateUser(e.ctx, "Yaw", "yaw@example.org")
	yaw := e.fx.CreateMember(e.ctx, e.church.ID, u.ID, e.roles[permissions.RoleMember].ID, "Yaw", "15550005555")
	bearer := testutil.Bearer(t, tm, u)
	self := e.base + "/me"

	rec := testutil.Call(t, e.router, http.MethodGet, self, bearer, nil)
	rec.AssertStatus(t, http.StatusOK)
	var v contactsvc.View
	rec.DecodeJSON(t, &v)
	if v.ID != yaw.ID || v.Role == nil || v.Role.Name != permissions.RoleMember {
		t.Fatalf("self = %+v", v)
	}

	// Fields outside the self-service set are ignored.
	rec = testutil.Call(t, e.router, http.MethodPatch, self, bearer, map[string]any{
		"last_name":    "Asante",
		"contact_type": "visitor",
	})
	rec.AssertStatus(t, http.StatusOK)
	var c models.Contact
	rec.DecodeJSON(t, &c)
	if c.Profile.LastName != "Asante" || c.ContactType != models.ContactTypeMember {
		t.Errorf("after self update: last=%q type=%q", c.Profile.LastName, c.ContactType)
	}

	guestUser := e.fx.CreateUser(e.ctx, "Efua", "efua@example.org")
	guestRole := e.fx.CreateRole(e.ctx, e.church.ID, "Guest")
	e.fx.CreateMember(e.ctx, e.church.ID, guestUser.ID, guestRole.ID, "Efua", "15550006666")
	guest := testutil.Bearer(t, tm, guestUser)

	rec = testutil.Call(t, e.router, http.MethodGet, self, guest, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec = testutil.Call(t, e.router, http.MethodPatch, self, guest, map[string]any{"last_name": "Mensah"})
	rec.AssertStatus(t, http.StatusForbidden)
	rec = testutil.Call(t, e.router, http.MethodDelete, self, guest, nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.Call(t, e.router, http.MethodDelete, self, bearer, nil)
	rec.AssertStatus(t, http.StatusNoContent)
	rec = testutil.Call(t, e.router, http.MethodGet, self, bearer, nil)
	rec.AssertStatus(t, http.StatusForbidden)

	// Staff without me.* reach their own record through member.update.
	rec = testutil.Call(t, e.router, http.MethodPatch, self, e.bearer, map[string]any{"last_name": "Owusu"})
	rec.AssertStatus(t, http.StatusOK)
}
