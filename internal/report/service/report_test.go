package service

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportvault/internal/pkg/logger"
	"reportvault/internal/report/biz"
	"reportvault/internal/report/data"
)

// memReportRepo 内存仓储，行为与数据库实现一致
type memReportRepo struct {
	reports map[string]*biz.Report
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{reports: make(map[string]*biz.Report)}
}

func (r *memReportRepo) Create(ctx context.Context, report *biz.Report) error {
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *memReportRepo) GetByID(ctx context.Context, id string) (*biz.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, biz.ErrReportNotFound
	}
	cp := *report
	return &cp, nil
}

func (r *memReportRepo) List(ctx context.Context) ([]*biz.Report, error) {
	out := make([]*biz.Report, 0, len(r.reports))
	for _, report := range r.reports {
		cp := *report
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memReportRepo) Update(ctx context.Context, report *biz.Report) error {
	if _, ok := r.reports[report.ID]; !ok {
		return biz.ErrReportNotFound
	}
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *memReportRepo) Delete(ctx context.Context, id string) (*biz.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, biz.ErrReportNotFound
	}
	delete(r.reports, id)
	return report, nil
}

type testEnv struct {
	router  *gin.Engine
	store   *data.LocalBlobStore
	blobDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "console"})
	require.NoError(t, err)

	blobDir := t.TempDir()
	store, err := data.NewLocalBlobStore(blobDir)
	require.NoError(t, err)

	uc := biz.NewReportUseCase(newMemReportRepo(), store, biz.DefaultUploadPolicy(), log)
	svc := NewReportService(uc, log.Logger)

	router := gin.New()
	api := router.Group("/api/v1")
	svc.RegisterRoutes(api)

	return &testEnv{router: router, store: store, blobDir: blobDir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.blobDir)
	require.NoError(t, err)
	return len(entries)
}

// multipartBody 构造 multipart 请求体；fileContent 为 nil 时不带文件部分
func multipartBody(t *testing.T, fields map[string]string, fileName, fileType string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if fileContent != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		h.Set("Content-Type", fileType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) *ReportResponse {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var report ReportResponse
	require.NoError(t, json.Unmarshal(env.Data, &report))
	return &report
}

func createReport(t *testing.T, env *testEnv, title string, pdf []byte) *ReportResponse {
	t.Helper()

	body, contentType := multipartBody(t, map[string]string{
		"title":       title,
		"author":      "Ana",
		"description": "test report",
	}, "report.pdf", "application/pdf", pdf)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeReport(t, w)
}

func TestCreateAndDownloadFlow(t *testing.T) {
	env := newTestEnv(t)
	pdf := bytes.Repeat([]byte("%PDF-1.4 payload "), 128) // ~2 KiB

	created := createReport(t, env, "Flow Test", pdf)
	require.NotNil(t, created.File)
	assert.NotEmpty(t, created.File.StoredName)

	// GET 返回同一个附件引用
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decodeReport(t, w)
	require.NotNil(t, fetched.File)
	assert.Equal(t, created.File.StoredName, fetched.File.StoredName)

	// 下载得到完全相同的字节
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+created.ID+"/file", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, pdf, w.Body.Bytes())
}

func TestCreateWithoutFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"title":  "No File",
		"author": "Ben",
	}, "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	report := decodeReport(t, w)
	assert.Nil(t, report.File)

	// 没有文件的下载请求返回 404
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+report.ID+"/file", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRejectsWrongContentType(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"title":  "Bad Type",
		"author": "Ana",
	}, "notes.txt", "text/plain", []byte("plain text"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	// 被拒的上传不得触碰存储
	assert.Equal(t, 0, env.blobCount(t))
}

func TestCreateRequiresFields(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"author": "Ana",
	}, "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateReplacesFile(t *testing.T) {
	env := newTestEnv(t)

	created := createReport(t, env, "Replace", []byte("%PDF v1"))
	require.Equal(t, 1, env.blobCount(t))

	newPDF := bytes.Repeat([]byte("%PDF-1.4 v2 "), 256) // ~3 KiB
	body, contentType := multipartBody(t, map[string]string{
		"title":  "Replace",
		"author": "Ana",
	}, "v2.pdf", "application/pdf", newPDF)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/reports/"+created.ID, body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decodeReport(t, w)
	require.NotNil(t, updated.File)
	assert.NotEqual(t, created.File.StoredName, updated.File.StoredName)

	// 旧文件已删除，目录中只剩新文件
	assert.Equal(t, 1, env.blobCount(t))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+created.ID+"/file", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, newPDF, w.Body.Bytes())
}

func TestUpdateWithoutFileKeepsAttachment(t *testing.T) {
	env := newTestEnv(t)

	created := createReport(t, env, "Keep", []byte("%PDF v1"))

	body, contentType := multipartBody(t, map[string]string{
		"title":  "Keep Updated",
		"author": "Ana",
	}, "", "", nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/reports/"+created.ID, body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)

	updated := decodeReport(t, w)
	assert.Equal(t, "Keep Updated", updated.Title)
	require.NotNil(t, updated.File)
	assert.Equal(t, created.File.StoredName, updated.File.StoredName)
	assert.Equal(t, 1, env.blobCount(t))
}

func TestUpdateMissingReport(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{
		"title":  "T",
		"author": "A",
	}, "", "", nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/reports/00000000-0000-0000-0000-000000000000", body)
	req.Header.Set("Content-Type", contentType)

	w := env.do(t, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteCascade(t *testing.T) {
	env := newTestEnv(t)

	created := createReport(t, env, "Doomed", []byte("%PDF v1"))
	require.Equal(t, 1, env.blobCount(t))

	w := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/reports/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	removed := decodeReport(t, w)
	assert.Equal(t, created.ID, removed.ID)

	// 记录与文件都已不在
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.blobCount(t))

	w = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/reports/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNewestFirst(t *testing.T) {
	env := newTestEnv(t)

	createReport(t, env, "first", nil)
	createReport(t, env, "second", nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var env2 envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env2))

	var payload struct {
		Items []*ReportResponse `json:"items"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env2.Data, &payload))

	require.Equal(t, 2, payload.Total)
	assert.Equal(t, "second", payload.Items[0].Title)
	assert.Equal(t, "first", payload.Items[1].Title)
}
