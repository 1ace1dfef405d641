package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tholdem/uniqn-sync/pkg/auth"
	"github.com/tholdem/uniqn-sync/pkg/query"
	"github.com/tholdem/uniqn-sync/pkg/records"
	firestore "github.com/tholdem/uniqn-sync/repos/firestore"
	"github.com/tholdem/uniqn-sync/services/unified"
)

type fakeData struct {
	mu           sync.Mutex
	dispatchers  map[string]unified.Dispatcher
	subscribes   int
	subscribeErr error
	invalidated  []records.Collection
	selector     *query.Selector
}

func newFakeData() *fakeData {
	return &fakeData{
		dispatchers: map[string]unified.Dispatcher{},
		selector:    query.NewSelector(query.DefaultConfig()),
	}
}

func (f *fakeData) Subscribe(_ context.Context, dispatch unified.Dispatcher, userID string, role records.Role) (*unified.Subscriptions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribes++
	f.dispatchers[userID] = dispatch
	return &unified.Subscriptions{}, nil
}

func (f *fakeData) Subscribed(role records.Role) []records.Collection {
	return f.selector.Subscribed(role)
}

func (f *fakeData) InvalidateCache(col records.Collection) (int, error) {
	if _, err := records.ParseCollection(string(col)); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.invalidated = append(f.invalidated, col)
	f.mu.Unlock()
	return 3, nil
}

func (f *fakeData) Metrics() unified.Report {
	return unified.Report{CacheSize: 7}
}

func (f *fakeData) dispatch(userID string, a unified.Action) {
	f.mu.Lock()
	d := f.dispatchers[userID]
	f.mu.Unlock()
	d(a)
}

type fakeWriter struct {
	result *firestore.StatusResult
	err    error
	calls  [][]string
}

func (f *fakeWriter) SetStatus(_ context.Context, eventID string, ids []string, status records.WorkLogStatus) (*firestore.StatusResult, error) {
	f.calls = append(f.calls, append([]string{eventID, string(status)}, ids...))
	return f.result, f.err
}

// identity stands in for token verification: X-User and X-Role headers.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := records.ParseRole(c.GetHeader("X-Role"))
		if err != nil {
			role = records.RoleStaff
		}
		auth.WithIdentity(c.GetHeader("X-User"), role)(c)
	}
}

type harness struct {
	router  *gin.Engine
	data    *fakeData
	writer  *fakeWriter
	service *SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	writer := &fakeWriter{result: &firestore.StatusResult{Updated: []string{}, Failed: map[string]string{}}}
	h := newHarnessWithWriter(t, writer)
	h.writer = writer
	return h
}

func newHarnessWithWriter(t *testing.T, writer StatusWriter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	data := newFakeData()
	svc := NewSessionService(data, writer, 16, zap.NewNop())

	router := gin.New()
	group := router.Group("/data/v1")
	group.Use(identity())
	NewHTTPHandler(HTTPOptions{Service: svc, Router: group, Heartbeat: time.Hour})
	return &harness{router: router, data: data, service: svc}
}

func (h *harness) do(method, path, user string, role records.Role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-User", user)
	req.Header.Set("X-Role", string(role))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestOpenSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "")
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[SessionResponse](t, w)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, records.RoleStaff, first.Role)
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.InitialLoad)
	assert.Equal(t, []records.Collection{
		records.CollectionJobPostings,
		records.CollectionApplications,
		records.CollectionWorkLogs,
		records.CollectionTournaments,
	}, first.Subscribed)

	w = h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[SessionResponse](t, w).ID)
	assert.Equal(t, 1, h.data.subscribes)

	w = h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleManager, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEqual(t, first.ID, decode[SessionResponse](t, w).ID)
	assert.Equal(t, 1, h.service.Count())

	w = h.do(http.MethodGet, "/data/v1/session", "u1", records.RoleManager, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[SessionResponse](t, w).Subscribed, 6)
}

func TestOpenSession_SubscribeError(t *testing.T) {
	h := newHarness(t)
	h.data.subscribeErr = unified.ErrMissingUser

	w := h.do(http.MethodPost, "/data/v1/session", "", records.RoleStaff, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, h.service.Count())

	h.data.subscribeErr = errors.New("backend down")
	w = h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSnapshotAndClose(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/data/v1/session/snapshot", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "").Code)
	h.data.dispatch("u1", unified.SetWorkLogs{Data: []records.WorkLog{{ID: "w1", StaffID: "u1", Date: "2025-06-14"}}})
	h.data.dispatch("u1", unified.SetLoading{Collection: records.CollectionWorkLogs, Loading: false})

	w = h.do(http.MethodGet, "/data/v1/session/snapshot", "u1", records.RoleStaff, "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		WorkLogs map[string]records.WorkLog  `json:"workLogs"`
		Loading  map[records.Collection]bool `json:"loading"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Contains(t, snap.WorkLogs, "w1")
	assert.False(t, snap.Loading[records.CollectionWorkLogs])
	assert.True(t, snap.Loading[records.CollectionTournaments])

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/data/v1/session", "u1", records.RoleStaff, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/data/v1/session", "u1", records.RoleStaff, "").Code)
}

func TestDerivedViews(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "").Code)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "m1", records.RoleManager, "").Code)
	h.data.dispatch("m1", unified.SetApplications{Data: []records.Application{
		{ID: "a1", PostID: "p1"}, {ID: "a2", PostID: "p2"},
	}})

	w := h.do(http.MethodGet, "/data/v1/session/staff/u2/worklogs", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/data/v1/session/staff/u1/worklogs", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"workLogs":[]}`, w.Body.String())

	w = h.do(http.MethodGet, "/data/v1/session/staff/s9/worklog?eventId=ev1&date=2025-06-14", "m1", records.RoleManager, "")
	require.Equal(t, http.StatusOK, w.Code)
	wl := decode[records.WorkLog](t, w)
	assert.Equal(t, "virtual_s9_2025-06-14", wl.ID)
	assert.Equal(t, records.WorkLogNotStarted, wl.Status)

	w = h.do(http.MethodGet, "/data/v1/session/staff/s9/worklog?eventId=ev1", "m1", records.RoleManager, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/data/v1/session/postings/p1/applications", "m1", records.RoleManager, "")
	require.Equal(t, http.StatusOK, w.Code)
	apps := decode[map[string][]records.Application](t, w)["applications"]
	require.Len(t, apps, 1)
	assert.Equal(t, "a1", apps[0].ID)
}

func TestMetricsAndInvalidate(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/data/v1/metrics", "u1", records.RoleStaff, "").Code)

	w := h.do(http.MethodGet, "/data/v1/metrics", "a1", records.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, decode[unified.Report](t, w).CacheSize)

	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, "/data/v1/cache/invalidate/workLogs", "u1", records.RoleStaff, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPost, "/data/v1/cache/invalidate/payroll", "m1", records.RoleManager, "").Code)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "m1", records.RoleManager, "").Code)
	session, err := h.service.Get("m1")
	require.NoError(t, err)
	before := session.Store.Generation(records.CollectionWorkLogs)

	w = h.do(http.MethodPost, "/data/v1/cache/invalidate/workLogs", "m1", records.RoleManager, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, InvalidateResponse{Collection: records.CollectionWorkLogs, Removed: 3}, decode[InvalidateResponse](t, w))
	assert.Equal(t, []records.Collection{records.CollectionWorkLogs}, h.data.invalidated)
	assert.Equal(t, before+1, session.Store.Generation(records.CollectionWorkLogs))
}

func TestWorkLogStatus(t *testing.T) {
	h := newHarness(t)
	path := "/data/v1/worklogs/status"

	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, path, "u1", records.RoleStaff, `{"workLogIds":["w1"],"status":"absent"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPost, path, "m1", records.RoleManager, `{"workLogIds":[],"status":"absent"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPost, path, "m1", records.RoleManager, `{"workLogIds":["w1"],"status":"teleported"}`).Code)
	assert.Empty(t, h.writer.calls)

	w := h.do(http.MethodPost, path, "m1", records.RoleManager,
		`{"eventId":"ev1","workLogIds":["w1","virtual_s1_2025-06-14"],"status":"checked_in"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.writer.calls, 1)
	assert.Equal(t, []string{"ev1", "checked_in", "w1", "virtual_s1_2025-06-14"}, h.writer.calls[0])

	h.writer.result = &firestore.StatusResult{Updated: []string{"w1"}, Failed: map[string]string{"w2": "not found"}}
	w = h.do(http.MethodPost, path, "a1", records.RoleAdmin, `{"workLogIds":["w1","w2"],"status":"absent"}`)
	assert.Equal(t, http.StatusMultiStatus, w.Code)

	h.writer.err = firestore.ErrMissingEvent
	w = h.do(http.MethodPost, path, "a1", records.RoleAdmin, `{"workLogIds":["virtual_s1_2025-06-14"],"status":"absent"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkLogStatus_MixedBatch(t *testing.T) {
	h := newHarness(t)
	h.writer.result = &firestore.StatusResult{
		Updated: []string{"wl-1"},
		Failed:  map[string]string{"virtual_s1_yesterday": "not correct format"},
	}

	w := h.do(http.MethodPost, "/data/v1/worklogs/status", "m1", records.RoleManager,
		`{"eventId":"ev1","workLogIds":["wl-1","virtual_s1_yesterday"],"status":"checked_in"}`)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	require.Len(t, h.writer.calls, 1)
	assert.Equal(t, []string{"ev1", "checked_in", "wl-1", "virtual_s1_yesterday"}, h.writer.calls[0])

	result := decode[firestore.StatusResult](t, w)
	assert.Equal(t, []string{"wl-1"}, result.Updated)
	assert.Contains(t, result.Failed, "virtual_s1_yesterday")
}

func TestWorkLogStatus_MalformedIDsAreReportedPerID(t *testing.T) {
	h := newHarnessWithWriter(t, firestore.NewWorkLogWriter(nil, zap.NewNop()))

	w := h.do(http.MethodPost, "/data/v1/worklogs/status", "m1", records.RoleManager,
		`{"eventId":"ev1","workLogIds":["virtual_s1_yesterday","virtual_bad"],"status":"checked_in"}`)
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	result := decode[firestore.StatusResult](t, w)
	assert.Empty(t, result.Updated)
	assert.Len(t, result.Failed, 2)
	assert.Contains(t, result.Failed["virtual_s1_yesterday"], "not correct format")
	assert.Contains(t, result.Failed["virtual_bad"], "not correct format")
}

func TestWorkLogFor_StaffReadsOwnOnly(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "").Code)

	w := h.do(http.MethodGet, "/data/v1/session/staff/u2/worklog?eventId=ev1&date=2025-06-14", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/data/v1/session/staff/u1/worklog?eventId=ev1&date=2025-06-14", "u1", records.RoleStaff, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "virtual_u1_2025-06-14", decode[records.WorkLog](t, w).ID)
}

func TestStream(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/data/v1/session", "u1", records.RoleStaff, "").Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/data/v1/session/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "u1")
	req.Header.Set("X-Role", "staff")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	nextEvent := func() string {
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "event:"); ok {
				return strings.TrimSpace(name)
			}
		}
		return ""
	}

	require.Equal(t, "snapshot", nextEvent())

	h.data.dispatch("u1", unified.SetLoading{Collection: records.CollectionWorkLogs, Loading: false})
	assert.Equal(t, "SET_LOADING", nextEvent())

	require.NoError(t, h.service.Close("u1"))
	assert.Equal(t, "closed", nextEvent())
}

func TestStream_NoSession(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/data/v1/session/stream", "u1", records.RoleStaff, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseAll(t *testing.T) {
	h := newHarness(t)
	for _, user := range []string{"u1", "u2", "u3"} {
		_, created, err := h.service.Open(context.Background(), user, records.RoleStaff)
		require.NoError(t, err)
		assert.True(t, created)
	}
	assert.Equal(t, 3, h.service.Count())

	h.service.CloseAll()
	assert.Zero(t, h.service.Count())
	_, err := h.service.Get("u1")
	assert.ErrorIs(t, err, ErrNoSession)
}
