package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/shepherd/internal/app/features/account"
	errorsfeature "github.com/dalemusser/shepherd/internal/app/features/errors"
	"github.com/dalemusser/shepherd/internal/app/services/accounts"
	"github.com/dalemusser/shepherd/internal/app/store/oauthstate"
	"github.com/dalemusser/shepherd/internal/app/system/auth"
	"github.com/dalemusser/shepherd/internal/app/system/authz"
	"github.com/dalemusser/shepherd/internal/app/system/indexes"
	"github.com/dalemusser/shepherd/internal/app/system/ratelimit"
	"github.com/dalemusser/shepherd/internal/app/system/tokens"
	"github.com/dalemusser/shepherd/internal/app/system/websession"
	"github.com/dalemusser/shepherd/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeGoogle struct {
	lastState string
	profile   accounts.ExternalProfile
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	g.lastState = state
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (g *fakeGoogle) Profile(context.Context, string) (accounts.ExternalProfile, error) {
	return g.profile, nil
}

type fakePhone struct{ code string }

func (p fakePhone) Check(_ context.Context, _, code string) error {
	if code != p.code {
		return errors.New("code mismatch")
	}
	return nil
}

type env struct {
	db     *mongo.Database
	svc    *accounts.Service
	mail   *testutil.Outbox
	google *fakeGoogle
	router http.Handler
	fx     *testutil.Fixtures
	ctx    context.Context
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
	tm := tokens.NewManager(tokens.Config{
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-0123456789",
	})
	mail := &testutil.Outbox{}
	svc := accounts.New(db, tm, mail, nil, log, accounts.Config{
		BaseURL:    "https://app.example.org",
		BcryptCost: bcrypt.MinCost,
	})
	sessions, err := websession.New("0123456789abcdef0123456789abcdef", "", "", false, 3600, log)
	if err != nil {
		t.Fatalf("websession.New: %v", err)
	}
	ew := errorsfeature.NewWriter(log)

	google := &fakeGoogle{}
	h := account.NewHandler(svc, sessions, oauthstate.New(db), ew.Write, log)
	h.Google = google
	h.Phone = fakePhone{code: "2468"}
	h.Limiter = ratelimit.NewAuthLimiter(1000, 5)

	r := account.Routes(h, auth.RequireUser(tm, ew.Write, log))
	return &env{db: db, svc: svc, mail: mail, google: google, router: r, fx: testutil.NewFixtures(t, db), ctx: ctx}
}

type call struct {
	method  string
	path    string
	body    any
	bearer  string
	cookies []*http.Cookie
}

func (e *env) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) accounts.Session {
	t.Helper()
	var s accounts.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session %q: %v", rec.Body.String(), err)
	}
	return s
}

func errKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error %q: %v", rec.Body.String(), err)
	}
	return body.Error.Kind
}

func signup(t *testing.T, e *env) accounts.Session {
	t.Helper()
	rec := e.do(t, call{method: http.MethodPost, path: "/signup", body: accounts.SignupInput{
		FirstName: "Kofi",
		LastName:  "Mensah",
		Email:     "Kofi@Example.org",
		Phone:     "+233 24 000 0001",
		Password:  "s3cret-pass",
	}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec)
}

func TestSignupLoginRefreshMe(t *testing.T) {
	e := setup(t)
	s := signup(t, e)
	if s.Tokens.AccessToken == "" || s.User.EmailAddr() != "kofi@example.org" {
		t.Fatalf("unexpected session %+v", s.User)
	}

	for _, loginID := range []string{"KOFI@example.org", "+233240000001", "233 24 000 0001"} {
		rec := e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
			"login_id": loginID, "password": "s3cret-pass",
		}})
		if rec.Code != http.StatusOK {
			t.Fatalf("login %q: status %d body %s", loginID, rec.Code, rec.Body.String())
		}
	}

	rec := e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
		"login_id": "kofi@example.org", "password": "wrong",
	}})
	if rec.Code != http.StatusUnauthorized || errKind(t, rec) != "unauthorized" {
		t.Fatalf("bad password: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, call{method: http.MethodGet, path: "/me", bearer: s.Tokens.AccessToken})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kofi@example.org") {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("me leaks password fields: %s", rec.Body.String())
	}

	rec = e.do(t, call{method: http.MethodPost, path: "/refresh", body: map[string]string{"refresh_token": s.Tokens.RefreshToken}})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh by body: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh_FromCookie(t *testing.T) {
	e := setup(t)
	rec := e.do(t, call{method: http.MethodPost, path: "/signup", body: accounts.SignupInput{
		FirstName: "Esi", Email: "esi@example.org", Password: "s3cret-pass",
	}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("signup set no session cookie")
	}

	rec = e.do(t, call{method: http.MethodPost, path: "/refresh", cookies: cookies})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh by cookie: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, call{method: http.MethodPost, path: "/refresh"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without token: status %d", rec.Code)
	}
}

func TestMe_RequiresBearer(t *testing.T) {
	e := setup(t)
	rec := e.do(t, call{method: http.MethodGet, path: "/me"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	rec = e.do(t, call{method: http.MethodGet, path: "/me", bearer: "not-a-token"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestConfirmEmail(t *testing.T) {
	e := setup(t)
	s := signup(t, e)
	code := e.mail.LastCode(t)

	rec := e.do(t, call{method: http.MethodPost, path: "/email/confirm", bearer: s.Tokens.AccessToken, body: map[string]string{"code": "0000"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, call{method: http.MethodPost, path: "/email/confirm", bearer: s.Tokens.AccessToken, body: map[string]string{"code": code}})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, call{method: http.MethodPost, path: "/email/resend", bearer: s.Tokens.AccessToken})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("resend after confirm: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestPasswordReset(t *testing.T) {
	e := setup(t)
	signup(t, e)

	rec := e.do(t, call{method: http.MethodPost, path: "/password/forgot", body: map[string]string{"login_id": "nobody@example.org"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forgot unknown: status %d", rec.Code)
	}

	rec = e.do(t, call{method: http.MethodPost, path: "/password/forgot", body: map[string]string{"login_id": "kofi@example.org"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forgot: status %d body %s", rec.Code, rec.Body.String())
	}
	code := e.mail.LastCode(t)

	rec = e.do(t, call{method: http.MethodPost, path: "/password/reset", body: map[string]string{
		"login_id": "kofi@example.org", "code": code, "password": "new-password-1",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
		"login_id": "kofi@example.org", "password": "new-password-1",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: status %d", rec.Code)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	e := setup(t)
	signup(t, e)

	for i := 0; i < 5; i++ {
		rec := e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
			"login_id": "kofi@example.org", "password": "wrong-password",
		}})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, rec.Code)
		}
	}
	rec := e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
		"login_id": "KOFI@example.org", "password": "s3cret-pass",
	}})
	if rec.Code != http.StatusTooManyRequests || errKind(t, rec) != "rate_limited" {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	// Other accounts are unaffected.
	rec = e.do(t, call{method: http.MethodPost, path: "/login", body: map[string]string{
		"login_id": "ama@example.org", "password": "whatever-pass",
	}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("other account: status %d", rec.Code)
	}
}

func TestForgotPassword_SendFailure(t *testing.T) {
	e := setup(t)
	signup(t, e)
	e.mail.Fail = errors.New("smtp unavailable")

	rec := e.do(t, call{method: http.MethodPost, path: "/password/forgot", body: map[string]string{"login_id": "kofi@example.org"}})
	if rec.Code != http.StatusBadGateway || errKind(t, rec) != "notification_failed" {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestGoogleFlow(t *testing.T) {
	e := setup(t)
	e.google.profile = accounts.ExternalProfile{
		ProviderID:    "google-123",
		Email:         "ama@example.org",
		EmailVerified: true,
		FirstName:     "Ama",
	}

	rec := e.do(t, call{method: http.MethodGet, path: "/google?return=/welcome"})
	if rec.Code != http.StatusTemporaryRedirect || e.google.lastState == "" {
		t.Fatalf("start: status %d state %q", rec.Code, e.google.lastState)
	}
	state := url.QueryEscape(e.google.lastState)

	rec = e.do(t, call{method: http.MethodGet, path: "/google/callback?state=" + state + "&code=abc"})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/welcome" {
		t.Fatalf("callback: status %d location %q body %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("callback set no refresh cookie")
	}

	rec = e.do(t, call{method: http.MethodGet, path: "/google/callback?state=" + state + "&code=abc"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed state: status %d", rec.Code)
	}

	n, err := e.db.Collection("users").CountDocuments(e.ctx, bson.M{"provider.id": "google-123"})
	if err != nil || n != 1 {
		t.Fatalf("google user count = %d, err %v", n, err)
	}
}

func TestGoogleFlow_RejectsOffsiteReturn(t *testing.T) {
	e := setup(t)
	e.google.profile = accounts.ExternalProfile{ProviderID: "google-9", Email: "yaw@example.org", FirstName: "Yaw"}

	e.do(t, call{method: http.MethodGet, path: "/google?return=//evil.example.com"})
	rec := e.do(t, call{method: http.MethodGet, path: "/google/callback?state=" + url.QueryEscape(e.google.lastState) + "&code=abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want JSON session", rec.Code)
	}
	if s := decodeSession(t, rec); s.Tokens.AccessToken == "" {
		t.Fatal("no access token in callback session")
	}
}

func TestPhoneLogin(t *testing.T) {
	e := setup(t)

	rec := e.do(t, call{method: http.MethodPost, path: "/phone", body: map[string]string{"phone": "+233 20 111 2222", "code": "1111"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong code: status %d", rec.Code)
	}
	rec = e.do(t, call{method: http.MethodPost, path: "/phone", body: map[string]string{"phone": "+233 20 111 2222", "code": "2468", "first_name": "Abena"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("phone login: status %d body %s", rec.Code, rec.Body.String())
	}
	if s := decodeSession(t, rec); s.User.PhoneNumber() != "233201112222" {
		t.Fatalf("phone = %q", s.User.PhoneNumber())
	}
}

func TestAcceptInvitation(t *testing.T) {
	e := setup(t)
	church, _ := e.fx.CreateHQChurch(e.ctx, "Grace Chapel", "grace@example.org", "233200000001")
	roles := e.fx.CreateDefaultRoles(e.ctx, church.ID, true)
	inviter := e.fx.CreateUser(e.ctx, "Pastor", "pastor@example.org")
	actor := e.fx.CreateMember(e.ctx, church.ID, inviter.ID, roles["Admin"].ID, "Pastor", "233200000002")
	c := e.fx.CreateContact(e.ctx, church.ID, "Efua", "233200000003")
	if _, err := e.db.Collection("contacts").UpdateOne(e.ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{"profile.email": "efua@example.org"}}); err != nil {
		t.Fatalf("set email: %v", err)
	}

	ctx := authz.WithDecision(e.ctx, authz.Decision{Caller: actor, Role: roles["Admin"], ChurchID: church.ID})
	inv, err := e.svc.CreateInvitation(ctx, church.ID, c.ID)
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	path := "/invitations/" + inv.ID.Hex() + "/accept"
	rec := e.do(t, call{method: http.MethodPost, path: path, body: map[string]string{"token": "wrong", "password": "s3cret-pass"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("wrong token: status %d", rec.Code)
	}
	rec = e.do(t, call{method: http.MethodPost, path: path, body: map[string]string{"token": inv.Token, "password": "s3cret-pass"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, call{method: http.MethodPost, path: path, body: map[string]string{"token": inv.Token, "password": "s3cret-pass"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second accept: status %d", rec.Code)
	}
	rec = e.do(t, call{method: http.MethodPost, path: "/invitations/nope/accept", body: map[string]string{"token": inv.Token}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}
