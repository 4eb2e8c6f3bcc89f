package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/sitecost/internal/config"
	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository/sqldb/sqldbtest"
	"github.com/mamadbah2/sitecost/internal/server/handlers"
	"github.com/mamadbah2/sitecost/internal/service/accounts"
	"github.com/mamadbah2/sitecost/internal/service/audit"
	"github.com/mamadbah2/sitecost/internal/service/entries"
	"github.com/mamadbah2/sitecost/internal/service/reporting"
	"github.com/mamadbah2/sitecost/internal/service/split"
	"github.com/mamadbah2/sitecost/internal/service/suppliers"
)

type testServer struct {
	t      *testing.T
	engine http.Handler
	admin  string
	viewer string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := sqldbtest.Open(t)

	recorder := audit.NewRecorder(nil, nil)
	reportingSvc := reporting.NewService(store, reporting.Dependencies{}, nil)
	recorder.OnChange(reportingSvc.Invalidate)
	accountSvc := accounts.NewService(store, nil, config.AuthConfig{JWTSecret: "router-test", TokenTTL: time.Hour}, nil)
	entrySvc := entries.NewService(store, recorder, nil)

	engine := New(Handlers{
		Auth:      handlers.NewAuthHandler(accountSvc, nil),
		Entries:   handlers.NewEntryHandler(entrySvc, split.NewService(store, recorder, nil), nil),
		Suppliers: handlers.NewSupplierHandler(suppliers.NewService(store, recorder, nil), entrySvc, nil),
		Reports:   handlers.NewReportHandler(reportingSvc, audit.NewService(store, nil), nil),
		Accounts:  handlers.NewAccountHandler(accountSvc, nil),
	}, nil)

	require.NoError(t, accountSvc.SeedDefaults(ctx, "admin", "admin-password"))
	viewerGroup, err := store.FindGroupByName(ctx, models.GroupViewer)
	require.NoError(t, err)
	_, err = accountSvc.CreateUser(ctx, accounts.UserInput{Username: "viewer", Password: "viewer-password", GroupIDs: []int64{viewerGroup.ID}})
	require.NoError(t, err)

	s := &testServer{t: t, engine: engine}
	s.admin = s.login("admin", "admin-password")
	s.viewer = s.login("viewer", "viewer-password")
	return s
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var token accounts.Token
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &token))
	return token.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthzAndRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	out := httptest.NewRecorder()
	s.engine.ServeHTTP(out, req)
	assert.Equal(t, "abc-123", out.Header().Get(RequestIDHeader))
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/entries", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/entries", "garbage", nil).Code)

	rec = s.do(http.MethodGet, "/api/auth/me", s.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.Principal
	decode(t, rec, &me)
	assert.Equal(t, "viewer", me.Username)
	assert.False(t, me.IsStaff)
}

func TestCapabilitiesAreEnforced(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/entries", s.viewer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/dashboard", s.viewer, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/entries", s.viewer, map[string]string{"description": "x"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", s.viewer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users", s.admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/capabilities", s.admin, nil).Code)
}

func TestEntryLifecycleAndSplit(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/entries", s.admin, map[string]interface{}{
		"date":        "2024-04-02",
		"description": "Roof trusses",
		"cost":        "100.00",
		"lm":          "M",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Entry
	decode(t, rec, &created)

	rec = s.do(http.MethodPost, "/api/entries", s.admin, map[string]interface{}{"description": "bad", "lm": "Q"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var verr struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &verr)
	assert.Contains(t, verr.Fields, "lm")

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/entries/%d/split?n=3", created.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview split.Preview
	decode(t, rec, &preview)
	require.Len(t, preview.Drafts, 3)
	assert.Equal(t, "33.34", models.MoneyString(preview.Drafts[0].Cost))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, fmt.Sprintf("/api/entries/%d/split?n=1", created.ID), s.admin, nil).Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/entries/%d/split", created.ID), s.admin, map[string]interface{}{"drafts": preview.Drafts})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/entries/%d", created.ID), s.admin, nil).Code)

	rec = s.do(http.MethodGet, "/api/entries?lm=m&sort=cost&dir=desc", s.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.EntryPage
	decode(t, rec, &page)
	assert.EqualValues(t, 3, page.TotalCount)
	assert.Equal(t, "100.00", page.TotalCost.StringFixed(2))

	rec = s.do(http.MethodGet, "/api/audit-log", s.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var log models.AuditPage
	decode(t, rec, &log)
	require.NotEmpty(t, log.Records)
	assert.Equal(t, models.AuditSplit, log.Records[0].Action)
	assert.Equal(t, "admin", log.Records[0].Username)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/entries?date_from=yesterday", s.viewer, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/entries/abc", s.viewer, nil).Code)
}

func TestSplitOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/entries", s.admin, map[string]interface{}{"description": "Gravel", "cost": "5.00", "qty": "1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cost":"5.00"`)
	assert.Contains(t, rec.Body.String(), `"qty":"1.00"`)
	var created models.Entry
	decode(t, rec, &created)
	path := fmt.Sprintf("/api/entries/%d/split", created.ID)

	rec = s.do(http.MethodGet, path+"?n=2", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cost":"2.50"`)
	assert.Contains(t, rec.Body.String(), `"qty":"0.50"`)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, path+"?n=101", s.admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, path+"?n=1099511627776", s.admin, nil).Code)

	rec = s.do(http.MethodPost, path, s.admin, map[string]interface{}{
		"drafts": []map[string]interface{}{
			{"description": "half", "cost": "2.50"},
			{"description": "half", "cost": "2.50", "lm": "Q"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var splitErr struct {
		Drafts []*struct {
			Fields map[string]string `json:"fields"`
		} `json:"drafts"`
	}
	decode(t, rec, &splitErr)
	require.Len(t, splitErr.Drafts, 2)
	assert.Nil(t, splitErr.Drafts[0])
	require.NotNil(t, splitErr.Drafts[1])
	assert.Contains(t, splitErr.Drafts[1].Fields, "lm")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/api/entries/%d", created.ID), s.admin, nil).Code)
}

func TestMalformedDatesAreRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/entries", s.admin, map[string]interface{}{"description": "x", "date": "2024-01-15garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/entries?date_from=2024-01-15T00:00", s.viewer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/entries?date_from=2024-01-15", s.viewer, nil).Code)
}

func TestSupplierRenameConflict(t *testing.T) {
	s := newTestServer(t)

	var a, b models.Supplier
	rec := s.do(http.MethodPost, "/api/suppliers", s.admin, map[string]string{"name": "Acme Lumbr"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &a)
	rec = s.do(http.MethodPost, "/api/suppliers", s.admin, map[string]string{"name": "Acme Lumber"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &b)

	path := fmt.Sprintf("/api/suppliers/%d/rename", a.ID)
	rec = s.do(http.MethodPost, path, s.admin, map[string]interface{}{"name": "Acme Lumber"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		Existing models.Supplier `json:"existing"`
	}
	decode(t, rec, &conflict)
	assert.Equal(t, b, conflict.Existing)

	rec = s.do(http.MethodPost, path, s.admin, map[string]interface{}{"name": "Acme Lumber", "confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var result suppliers.RenameResult
	decode(t, rec, &result)
	assert.True(t, result.Merged)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/suppliers/%d", a.ID), s.admin, nil).Code)
}

func TestExportXLSX(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/exports/entries.xlsx", s.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "entries.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}
