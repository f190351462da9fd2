package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/service"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock SyncService ──

type mockSyncService struct {
	syncResult   *dto.SyncResult
	retryResult  *dto.RetryResult
	retryErr     error
	resyncResult *dto.SyncResult
	resyncErr    error
	listResult   []dto.AuditLogResponse
	listTotal    int64
	listErr      error

	lastTriggeredBy string
	lastAuditLogID  string
}

func (m *mockSyncService) SyncScore(_ context.Context, _ *dto.ScoreSubmissionRequest, triggeredBy string) *dto.SyncResult {
	m.lastTriggeredBy = triggeredBy
	return m.syncResult
}
func (m *mockSyncService) RetryFailedSyncs(_ context.Context) (*dto.RetryResult, error) {
	return m.retryResult, m.retryErr
}
func (m *mockSyncService) ManualResync(_ context.Context, auditLogID, triggeredBy string) (*dto.SyncResult, error) {
	m.lastAuditLogID = auditLogID
	m.lastTriggeredBy = triggeredBy
	return m.resyncResult, m.resyncErr
}
func (m *mockSyncService) ListAuditLogs(_ context.Context, _ *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error) {
	return m.listResult, m.listTotal, m.listErr
}

// ── Mock ReportCardService ──

type mockReportCardService struct {
	card    *model.ReportCard
	cardErr error
	list    []model.ReportCard
	listErr error
}

func (m *mockReportCardService) GetStudentReportCard(_ context.Context, _, _ string) (*model.ReportCard, error) {
	return m.card, m.cardErr
}
func (m *mockReportCardService) GetByID(_ context.Context, _ string) (*model.ReportCard, error) {
	return m.card, m.cardErr
}
func (m *mockReportCardService) ListClass(_ context.Context, _, _ string) ([]model.ReportCard, error) {
	return m.list, m.listErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportClassReportCards(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportAuditLogs(_ context.Context, _ repository.AuditLogFilter) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportExamCalendar(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", "test-user-id")
		c.Set("role", "admin")
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func strptr(s string) *string { return &s }

// ═══════════════════════════════════════════════════════════
// SyncHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSyncHandler_SyncScore_Success(t *testing.T) {
	mock := &mockSyncService{
		syncResult: &dto.SyncResult{
			Success:      true,
			ReportCardID: strptr("rc-1"),
			Message:      "同步成功",
		},
	}
	h := NewSyncHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/score", jsonBody(dto.ScoreSubmissionRequest{
		StudentID: "11111111-1111-1111-1111-111111111111",
		ExamID:    "22222222-2222-2222-2222-222222222222",
		Score:     35,
		MaxScore:  40,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/sync/score", setAuth(), h.SyncScore)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("期望 code=0，实际=%d", resp.Code)
	}
	if mock.lastTriggeredBy != "test-user-id" {
		t.Errorf("期望 triggered_by=test-user-id，实际=%s", mock.lastTriggeredBy)
	}
}

// 同步业务失败依旧是 200，由 success 字段表达语义
func TestSyncHandler_SyncScore_BusinessFailureStill200(t *testing.T) {
	mock := &mockSyncService{
		syncResult: &dto.SyncResult{
			Success:   false,
			ErrorCode: dto.ErrCodeExamNotFound,
			Message:   "考试不存在",
		},
	}
	h := NewSyncHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/score", jsonBody(dto.ScoreSubmissionRequest{
		StudentID: "11111111-1111-1111-1111-111111111111",
		ExamID:    "22222222-2222-2222-2222-222222222222",
		Score:     35,
		MaxScore:  40,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/sync/score", setAuth(), h.SyncScore)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), dto.ErrCodeExamNotFound) {
		t.Errorf("期望响应包含错误码 %s，实际=%s", dto.ErrCodeExamNotFound, w.Body.String())
	}
}

func TestSyncHandler_SyncScore_BadJSON(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/score", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/sync/score", setAuth(), h.SyncScore)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际=%d", w.Code)
	}
}

func TestSyncHandler_SyncScore_ScoreExceedsMax(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/score", jsonBody(dto.ScoreSubmissionRequest{
		StudentID: "11111111-1111-1111-1111-111111111111",
		ExamID:    "22222222-2222-2222-2222-222222222222",
		Score:     50,
		MaxScore:  40,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/sync/score", setAuth(), h.SyncScore)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际=%d", w.Code)
	}
}

func TestSyncHandler_SyncScore_Unauthenticated(t *testing.T) {
	h := NewSyncHandler(&mockSyncService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/score", jsonBody(dto.ScoreSubmissionRequest{}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/sync/score", h.SyncScore) // 不注入 user_id
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际=%d", w.Code)
	}
}

func TestSyncHandler_RetryFailedSyncs(t *testing.T) {
	mock := &mockSyncService{
		retryResult: &dto.RetryResult{Processed: 3, Succeeded: 2, Failed: 1},
	}
	h := NewSyncHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/retry", nil)

	r := gin.New()
	r.POST("/sync/retry", setAuth(), h.RetryFailedSyncs)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"processed":3`) {
		t.Errorf("期望响应包含 processed=3，实际=%s", w.Body.String())
	}
}

func TestSyncHandler_ManualResync_NotFound(t *testing.T) {
	mock := &mockSyncService{resyncErr: service.ErrAuditLogNotFound}
	h := NewSyncHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sync/audit-logs/no-such-id/resync", nil)

	r := gin.New()
	r.POST("/sync/audit-logs/:id/resync", setAuth(), h.ManualResync)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际=%d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 17101 {
		t.Errorf("期望 code=17101，实际=%d", resp.Code)
	}
	if mock.lastAuditLogID != "no-such-id" {
		t.Errorf("期望透传路径参数 no-such-id，实际=%s", mock.lastAuditLogID)
	}
}

func TestSyncHandler_ListAuditLogs(t *testing.T) {
	mock := &mockSyncService{
		listResult: []dto.AuditLogResponse{{AuditLogID: "log-1", Status: "success"}},
		listTotal:  1,
	}
	h := NewSyncHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sync/audit-logs?status=success&page=1&page_size=20", nil)

	r := gin.New()
	r.GET("/sync/audit-logs", setAuth(), h.ListAuditLogs)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "log-1") {
		t.Errorf("期望响应包含 log-1，实际=%s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ReportCardHandler Tests
// ═══════════════════════════════════════════════════════════

func TestReportCardHandler_GetByID_Success(t *testing.T) {
	mock := &mockReportCardService{
		card: &model.ReportCard{ReportCardID: "rc-1", StudentID: "s1", ClassID: "c1", TermID: "t1"},
	}
	h := NewReportCardHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/report-cards/rc-1", nil)

	r := gin.New()
	r.GET("/report-cards/:id", setAuth(), h.GetByID)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rc-1") {
		t.Errorf("期望响应包含 rc-1，实际=%s", w.Body.String())
	}
}

func TestReportCardHandler_GetByID_NotFound(t *testing.T) {
	mock := &mockReportCardService{cardErr: service.ErrReportCardNotFound}
	h := NewReportCardHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/report-cards/nope", nil)

	r := gin.New()
	r.GET("/report-cards/:id", setAuth(), h.GetByID)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际=%d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 17201 {
		t.Errorf("期望 code=17201，实际=%d", resp.Code)
	}
}

func TestReportCardHandler_GetStudentReportCard_MissingTermID(t *testing.T) {
	h := NewReportCardHandler(&mockReportCardService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/report-cards/student/s1", nil)

	r := gin.New()
	r.GET("/report-cards/student/:student_id", setAuth(), h.GetStudentReportCard)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际=%d", w.Code)
	}
}

func TestReportCardHandler_ListClass(t *testing.T) {
	mock := &mockReportCardService{
		list: []model.ReportCard{
			{ReportCardID: "rc-1", StudentID: "s1"},
			{ReportCardID: "rc-2", StudentID: "s2"},
		},
	}
	h := NewReportCardHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/report-cards/class/c1?term_id=t1", nil)

	r := gin.New()
	r.GET("/report-cards/class/:class_id", setAuth(), h.ListClass)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rc-2") {
		t.Errorf("期望响应包含 rc-2，实际=%s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportClassReportCards_Success(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("fake-xlsx-bytes"),
		filename: "班级成绩汇总.xlsx",
	}
	h := NewExportHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/report-cards?class_id=c1&term_id=t1", nil)

	r := gin.New()
	r.GET("/export/report-cards", setAuth(), h.ExportClassReportCards)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeXLSX {
		t.Errorf("期望 Content-Type=%s，实际=%s", contentTypeXLSX, ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("期望附件下载头，实际=%s", cd)
	}
	if w.Body.String() != "fake-xlsx-bytes" {
		t.Error("期望原样透传文件内容")
	}
}

func TestExportHandler_ExportClassReportCards_MissingParams(t *testing.T) {
	h := NewExportHandler(&mockExportService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/report-cards?class_id=c1", nil)

	r := gin.New()
	r.GET("/export/report-cards", setAuth(), h.ExportClassReportCards)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际=%d", w.Code)
	}
}

func TestExportHandler_ExportClassReportCards_NoData(t *testing.T) {
	mock := &mockExportService{err: service.ErrExportNoReportCards}
	h := NewExportHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/report-cards?class_id=c1&term_id=t1", nil)

	r := gin.New()
	r.GET("/export/report-cards", setAuth(), h.ExportClassReportCards)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际=%d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 16101 {
		t.Errorf("期望 code=16101，实际=%d", resp.Code)
	}
}

func TestExportHandler_ExportExamCalendar_ICS(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
		filename: "考试安排.ics",
	}
	h := NewExportHandler(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/export/exam-calendar?student_id=s1&term_id=t1", nil)

	r := gin.New()
	r.GET("/export/exam-calendar", setAuth(), h.ExportExamCalendar)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeICS {
		t.Errorf("期望 Content-Type=%s，实际=%s", contentTypeICS, ct)
	}
	if !strings.Contains(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Error("期望响应为 ICS 内容")
	}
}
