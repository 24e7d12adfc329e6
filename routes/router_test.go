package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"civicsync-issues/config"
	"civicsync-issues/lifecycle"
	"civicsync-issues/models"
	"civicsync-issues/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int64
}

func (l *countingLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = make(map[string]int64)
	}
	l.hits[key]++
	return l.hits[key], window, nil
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T, rateLimit int) *apiClient {
	t.Helper()
	cfg := &config.Config{
		Storage:          config.StorageMemory,
		JWTSecret:        "router-test-secret",
		TokenTTL:         time.Hour,
		IssueLimitPrefix: "issue-limit",
		IssueRateLimit:   rateLimit,
		IssueRateWindow:  time.Hour,
		Environment:      "test",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()

	router := NewRouter(Deps{
		Config:      cfg,
		Store:       st,
		Issues:      lifecycle.NewService(st, st, st, lifecycle.WithLogger(logger)),
		Logger:      logger,
		RateCounter: &countingLimiter{},
	})
	return &apiClient{t: t, router: router}
}

func (a *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type session struct {
	token string
	id    string
}

func (a *apiClient) register(email string, cityID primitive.ObjectID) session {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Test",
		"surname":  "User",
		"email":    email,
		"password": "secret123",
		"cityId":   cityID.Hex(),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](a.t, w)
	return session{token: body.Token, id: body.User.ID.Hex()}
}

func (a *apiClient) createIssue(s session, cityID primitive.ObjectID) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, "/api/issue/create", s.token, gin.H{
		"cityId":      cityID.Hex(),
		"latitude":    41.39,
		"longitude":   2.17,
		"category":    "lighting",
		"description": "Street lamp out",
		"date":        "2024-05-01",
	})
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]any](t, w)["code"].(string)
}

func TestIssueWorkflowOverHTTP(t *testing.T) {
	api := newAPI(t, 0)
	city := primitive.NewObjectID()

	reporter := api.register("reporter@example.com", city)
	fiscal := api.register("fiscal@example.com", city)
	manager := api.register("manager@example.com", city)

	w := api.createIssue(reporter, city)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issue := decode[models.Issue](t, w)
	assert.Equal(t, models.StatusWaitingForFiscal, issue.Status)
	assert.Equal(t, reporter.id, issue.ReporterID.Hex())

	assignPath := "/api/issue/" + issue.ID.Hex() + "/assign/update"

	w = api.do(http.MethodPut, assignPath, reporter.token, gin.H{"field": "fiscalId", "userId": reporter.id})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "self_assignment_forbidden", errorCode(t, w))

	w = api.do(http.MethodPut, assignPath, fiscal.token, gin.H{"field": "fiscalId", "userId": fiscal.id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusWaitingForManager, decode[models.Issue](t, w).Status)

	w = api.do(http.MethodPut, assignPath, manager.token, gin.H{"field": "fiscalId", "userId": manager.id})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_authorized", errorCode(t, w))

	w = api.do(http.MethodPut, assignPath, manager.token, gin.H{"field": "managerId", "userId": manager.id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusWaitingForManagerAction, decode[models.Issue](t, w).Status)

	w = api.do(http.MethodPut, assignPath, manager.token, gin.H{"field": "status", "userId": manager.id})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_field", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/issue/"+issue.ID.Hex(), fiscal.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[lifecycle.IssueDetail](t, w)
	require.NotNil(t, detail.Fiscal)
	require.NotNil(t, detail.Manager)
	assert.Equal(t, "fiscal@example.com", detail.Fiscal.Email)
	assert.Equal(t, "manager@example.com", detail.Manager.Email)

	solvePath := "/api/issue/" + issue.ID.Hex() + "/solve"
	w = api.do(http.MethodPut, solvePath, manager.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, solvePath, reporter.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusSolved, decode[models.Issue](t, w).Status)

	w = api.do(http.MethodPut, solvePath, reporter.token, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_solved", errorCode(t, w))

	w = api.do(http.MethodPut, assignPath, manager.token, gin.H{"field": "managerId", "userId": manager.id})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_solved", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/issue/"+issue.ID.Hex(), reporter.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusSolved, decode[lifecycle.IssueDetail](t, w).Status)
}

func TestIssueListingOverHTTP(t *testing.T) {
	api := newAPI(t, 0)
	city := primitive.NewObjectID()
	alice := api.register("alice@example.com", city)
	bob := api.register("bob@example.com", city)

	w := api.createIssue(alice, city)
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[models.Issue](t, w)
	require.Equal(t, http.StatusCreated, api.createIssue(bob, city).Code)
	require.Equal(t, http.StatusCreated, api.createIssue(alice, primitive.NewObjectID()).Code)

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex(), alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]lifecycle.ListedIssue](t, w)
	require.Len(t, listed, 2)
	for _, issue := range listed {
		require.NotNil(t, issue.Reporter)
		assert.Equal(t, "Test", issue.Reporter.Name)
		assert.Equal(t, "User", issue.Reporter.Surname)
	}

	today := first.CreatedAt.UTC().Format(time.DateOnly)
	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex()+"?from="+today+"&to="+today, alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Issue](t, w), 2)

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex()+"?to="+today, alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Issue](t, w), 2)

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex()+"/user/"+alice.id, bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]models.Issue](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.id, mine[0].ReporterID.Hex())

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex()+"?from=2999-01-01", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Issue](t, w))

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex()+"?from=yesterday", alice.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/issue/all/not-an-id", alice.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentsOverHTTP(t *testing.T) {
	api := newAPI(t, 0)
	city := primitive.NewObjectID()
	reporter := api.register("reporter@example.com", city)
	other := api.register("other@example.com", city)

	w := api.createIssue(reporter, city)
	require.Equal(t, http.StatusCreated, w.Code)
	issue := decode[models.Issue](t, w)
	commentsPath := "/api/issue/" + issue.ID.Hex() + "/comments"

	w = api.do(http.MethodPost, commentsPath, reporter.token, gin.H{"text": "Any update?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	root := decode[models.Comment](t, w)

	w = api.do(http.MethodPost, commentsPath, other.token, gin.H{"text": "On it", "parentId": root.ID.Hex()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, commentsPath, other.token, gin.H{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, commentsPath, other.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[[]models.CommentWithAuthor](t, w)
	require.Len(t, thread, 2)
	require.NotNil(t, thread[0].Author)
	assert.Equal(t, "reporter@example.com", thread[0].Author.Email)
	require.NotNil(t, thread[1].ParentID)
	assert.Equal(t, root.ID, *thread[1].ParentID)

	w = api.createIssue(other, city)
	require.Equal(t, http.StatusCreated, w.Code)
	otherIssue := decode[models.Issue](t, w)
	w = api.do(http.MethodDelete, "/api/issue/"+otherIssue.ID.Hex()+"/comments/"+root.ID.Hex(), other.token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodDelete, commentsPath+"/"+root.ID.Hex(), other.token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, commentsPath, other.token, nil)
	assert.Len(t, decode[[]models.CommentWithAuthor](t, w), 1)

	w = api.do(http.MethodGet, "/api/issue/"+primitive.NewObjectID().Hex()+"/comments", other.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthOverHTTP(t *testing.T) {
	api := newAPI(t, 0)
	city := primitive.NewObjectID()
	alice := api.register("alice@example.com", city)

	w := api.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Again", "email": "ALICE@example.com", "password": "secret123", "cityId": city.Hex(),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate_email", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "Alice@Example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, alice.id, me["id"])
	assert.Equal(t, string(models.RoleResident), me["role"])
	assert.NotContains(t, me, "password")

	w = api.do(http.MethodGet, "/api/user/"+alice.id, alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode[models.UserSummary](t, w).Email)

	w = api.do(http.MethodGet, "/api/user/"+primitive.NewObjectID().Hex(), alice.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssueCreationRateLimit(t *testing.T) {
	api := newAPI(t, 1)
	city := primitive.NewObjectID()
	alice := api.register("alice@example.com", city)

	require.Equal(t, http.StatusCreated, api.createIssue(alice, city).Code)

	w := api.createIssue(alice, city)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/issue/all/"+city.Hex(), alice.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
