package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

func newExportFixture() (ExportService, *syncFixture) {
	f := newSyncFixture()
	return NewExportService(f.repo, zap.NewNop()), f
}

func TestExportClassReportCards_NoData(t *testing.T) {
	svc, _ := newExportFixture()

	_, _, err := svc.ExportClassReportCards(context.Background(), "c1", "t1")
	if !errors.Is(err, ErrExportNoReportCards) {
		t.Fatalf("期望 ErrExportNoReportCards，实际=%v", err)
	}
}

func TestExportClassReportCards_GeneratesWorkbook(t *testing.T) {
	svc, f := newExportFixture()
	f.seedBasics()

	res := f.svc.SyncScore(context.Background(), submission(35, 40), "")
	if !res.Success {
		t.Fatalf("准备数据失败: %+v", res)
	}

	buf, filename, err := svc.ExportClassReportCards(context.Background(), "c1", "t1")
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if buf.Len() == 0 {
		t.Errorf("导出内容不应为空")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("期望 .xlsx 文件名，实际=%s", filename)
	}
}

func TestExportAuditLogs_GeneratesWorkbook(t *testing.T) {
	svc, f := newExportFixture()

	_ = f.audit.Create(context.Background(), &model.SyncAuditLog{
		IdempotencyKey: "k1", SyncType: model.SyncTypeExamSubmit,
		StudentID: "s1", ExamID: "e1",
		Status: model.SyncStatusFailed, Score: 1, MaxScore: 2,
	})

	buf, filename, err := svc.ExportAuditLogs(context.Background(), repository.AuditLogFilter{})
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if buf.Len() == 0 {
		t.Errorf("导出内容不应为空")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("期望 .xlsx 文件名，实际=%s", filename)
	}
}

func TestExportExamCalendar_OnlyPublishedTimedExams(t *testing.T) {
	svc, f := newExportFixture()
	f.seedBasics()

	// e1 未发布无时间：不计入
	starts := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f.exams.exams["e2"] = &model.Exam{
		ExamID: "e2", Name: "期末考试", ExamType: model.ExamTypeFinal,
		SubjectID: "sub1", ClassID: "c1", TermID: "t1",
		TotalMarks: 60, IsPublished: true, StartsAt: &starts,
	}

	buf, filename, err := svc.ExportExamCalendar(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	content := buf.String()
	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		t.Errorf("应为 iCalendar 格式")
	}
	if !strings.Contains(content, "期末考试") {
		t.Errorf("日历应包含已发布考试")
	}
	if !strings.HasSuffix(filename, ".ics") {
		t.Errorf("期望 .ics 文件名，实际=%s", filename)
	}
}

func TestExportExamCalendar_NoPublishedExams(t *testing.T) {
	svc, f := newExportFixture()
	f.seedBasics() // e1 未发布

	_, _, err := svc.ExportExamCalendar(context.Background(), "s1", "t1")
	if !errors.Is(err, ErrExportNoExams) {
		t.Fatalf("期望 ErrExportNoExams，实际=%v", err)
	}
}

func TestExportExamCalendar_StudentMissing(t *testing.T) {
	svc, _ := newExportFixture()

	_, _, err := svc.ExportExamCalendar(context.Background(), "ghost", "t1")
	if !errors.Is(err, ErrExportStudentGone) {
		t.Fatalf("期望 ErrExportStudentGone，实际=%v", err)
	}
}
