package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-report/internal/config"
	"github.com/ginjaninja78/order-report/internal/metrics"
	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/report"
	"github.com/ginjaninja78/order-report/internal/session"
	"github.com/ginjaninja78/order-report/internal/tracker"
)

const shopeeCSV = `訂單編號,買家總支付金額,訂單成立日期
A001,100,2025-06-01 10:00
A002,250,2025-06-02 09:00
A003,50,2025-06-02 18:00
`

type harness struct {
	srv     *Server
	metrics *metrics.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxUploadMB = 1

	log, _ := test.NewNullLogger()
	m := metrics.NewRegistry()
	now := time.Date(2025, 6, 4, 10, 30, 0, 0, time.UTC)
	store := tracker.NewStore(filepath.Join(t.TempDir(), "tasks.json"), "DK",
		tracker.WithClock(func() time.Time { return now }), tracker.WithLogger(log))

	srv := New(Deps{
		Config:   cfg,
		Sessions: session.NewMemoryStore(),
		Tracker:  store,
		Metrics:  m,
		Log:      log,
	})
	return &harness{srv: srv, metrics: m}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func (h *harness) upload(t *testing.T, platformID, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("platform", platformID))
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndPlatforms(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profiles := decode[[]platform.Profile](t, w)
	require.Len(t, profiles, 3)
	assert.Equal(t, platform.Momo, profiles[0].ID)
}

func TestUploadAndReport(t *testing.T) {
	h := newHarness(t)

	w := h.upload(t, "shopee", "蝦皮.csv", []byte(shopeeCSV))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	up := decode[uploadResponse](t, w)
	assert.Equal(t, platform.Shopee, up.Platform)
	assert.Equal(t, 3, up.Rows)
	assert.Equal(t, []string{"2025/06/02", "2025/06/01"}, up.Dates)

	w = h.do(t, http.MethodGet, "/api/uploads/"+up.SessionID+"/dates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025/06/01")

	w = h.do(t, http.MethodPost, "/api/uploads/"+up.SessionID+"/report", reportRequest{Dates: []string{"2025/06/02"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	html := w.Body.String()
	assert.Contains(t, html, "06/02 蝦皮訂單")
	assert.Contains(t, html, "總計")
	assert.Contains(t, html, "300")
	assert.NotContains(t, html, "A001")

	w = h.do(t, http.MethodPost, "/api/uploads/"+up.SessionID+"/report", reportRequest{Dates: []string{"2025/06/01", "2025/06/02"}, Format: "json"})
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[report.Summary](t, w)
	assert.Equal(t, 3, sum.OrderCount)
	assert.Equal(t, "06/01 蝦皮訂單", sum.Title)
	assert.Equal(t, "NT$ 400", sum.TotalDisplay)
	assert.Equal(t, "A002", sum.Rows[0][0])

	w = h.do(t, http.MethodPost, "/api/uploads/"+up.SessionID+"/report?format=xlsx", reportRequest{Dates: []string{"2025/06/01"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Uploads.WithLabelValues("shopee")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Reports.WithLabelValues("shopee", "json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sessions))

	w = h.do(t, http.MethodDelete, "/api/uploads/"+up.SessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/uploads/"+up.SessionID+"/dates", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Sessions))
}

func TestUploadErrors(t *testing.T) {
	h := newHarness(t)

	w := h.upload(t, "amazon", "a.csv", []byte(shopeeCSV))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "無法識別的平台")

	w = h.upload(t, "shopee", "a.txt", []byte(shopeeCSV))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.upload(t, "shopee", "a.xlsx", []byte("not a workbook"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := bytes.Repeat([]byte("x"), 2<<20)
	w = h.upload(t, "shopee", "a.csv", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestReportErrors(t *testing.T) {
	h := newHarness(t)
	w := h.upload(t, "shopee", "a.csv", []byte(shopeeCSV))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[uploadResponse](t, w).SessionID

	w = h.do(t, http.MethodPost, "/api/uploads/"+id+"/report", reportRequest{Dates: []string{"2024/01/01"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "所選日期沒有任何訂單")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReportFailures.WithLabelValues("no_matching_rows")))

	w = h.do(t, http.MethodPost, "/api/uploads/"+id+"/report", reportRequest{Dates: []string{"2025/06/01"}, Format: "pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/uploads/"+id+"/report", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/uploads/6f1c2a52-0000-4000-8000-000000000000/report", reportRequest{Dates: []string{"2025/06/01"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "請重新上傳")

	w = h.do(t, http.MethodDelete, "/api/uploads/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpireSessions(t *testing.T) {
	h := newHarness(t)
	w := h.upload(t, "shopee", "a.csv", []byte(shopeeCSV))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, 0, h.srv.ExpireSessions())

	h.srv.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	assert.Equal(t, 1, h.srv.ExpireSessions())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Sessions))
}

func TestTrackerRoutes(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/projects", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	proj := decode[tracker.Project](t, w)
	assert.Equal(t, "proj_001", proj.ID)
	assert.Equal(t, "新專案", proj.Name)

	w = h.do(t, http.MethodPut, "/api/projects/"+proj.ID, `{"name":"電商"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "電商", decode[tracker.Project](t, w).Name)

	w = h.do(t, http.MethodPost, "/api/tasks/"+proj.ID, `{"title":"對帳","status":"in_progress","estimated_completion":"2025-06-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[tracker.Task](t, w)
	assert.Equal(t, "task_001", task.ID)

	w = h.do(t, http.MethodPut, "/api/tasks/"+task.ID, `{"progress":"half"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/tasks/"+task.ID, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[tracker.Summary](t, w)
	assert.Equal(t, 1, sum.InProgress)
	assert.Equal(t, 1, sum.Overdue)

	w = h.do(t, http.MethodPost, "/api/weekly-log", logEntryRequest{Content: "完成對帳", TaskID: &task.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(t, http.MethodGet, "/api/weekly-report?week=2025-06-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rep := decode[tracker.WeeklyReport](t, w)
	assert.Equal(t, "2025-06-02", rep.WeekStart)
	require.Len(t, rep.LogEntries, 1)
	require.Len(t, rep.InProgress, 1)
	assert.True(t, rep.InProgress[0].Overdue)

	w = h.do(t, http.MethodGet, "/api/weekly-report?week=June", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPut, "/api/projects/proj_404", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "proj_404"))

	w = h.do(t, http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode[tracker.Data](t, w)
	assert.Equal(t, "DK", data.Meta.Owner)
	require.Len(t, data.Projects, 1)

	w = h.do(t, http.MethodDelete, "/api/projects/"+proj.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserError(t *testing.T) {
	status, msg := userError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, msg, assert.AnError.Error())

	status, _ = userError(session.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)
}
