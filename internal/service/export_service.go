package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoReportCards = errors.New("该班级该学期暂无成绩单")
	ErrExportNoExams       = errors.New("该班级该学期暂无考试安排")
	ErrExportStudentGone   = errors.New("学生不存在")
	ErrExportGenerateFail  = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 班级成绩汇总导出为 Excel (.xlsx)：学生 × 科目矩阵 + 名次列
//   - 审计记录导出为 Excel，供运维排查批量同步问题
//   - 学生考试安排导出为 iCalendar (.ics)，可订阅到日历客户端
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportClassReportCards 导出班级成绩汇总 Excel
	ExportClassReportCards(ctx context.Context, classID, termID string) (*bytes.Buffer, string, error)
	// ExportAuditLogs 导出审计记录 Excel
	ExportAuditLogs(ctx context.Context, filter repository.AuditLogFilter) (*bytes.Buffer, string, error)
	// ExportExamCalendar 导出学生考试安排 ICS
	ExportExamCalendar(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportClassReportCards — 班级成绩汇总 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 行：学生（按名次升序，未排名在后）
//   - 列：姓名 | 各科目百分比 | 总评百分比 | 等级 | 名次
//   - 未评分单元格填 "-"

func (s *exportService) ExportClassReportCards(ctx context.Context, classID, termID string) (*bytes.Buffer, string, error) {
	cards, err := s.repo.ReportCard.ListByClassTerm(ctx, classID, termID)
	if err != nil {
		s.logger.Error("查询班级成绩单失败", zap.Error(err))
		return nil, "", err
	}
	if len(cards) == 0 {
		return nil, "", ErrExportNoReportCards
	}

	sort.SliceStable(cards, func(i, j int) bool {
		pi, pj := cards[i].Position, cards[j].Position
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return *pi < *pj
	})

	// 收集科目列（按名称排序，保证列顺序稳定）
	type subjectCol struct {
		id   string
		name string
	}
	subjectSeen := make(map[string]bool)
	var subjects []subjectCol
	for _, card := range cards {
		for _, item := range card.Items {
			if subjectSeen[item.SubjectID] {
				continue
			}
			subjectSeen[item.SubjectID] = true
			name := item.SubjectID
			if item.Subject != nil {
				name = item.Subject.Name
			}
			subjects = append(subjects, subjectCol{id: item.SubjectID, name: name})
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].name < subjects[j].name })

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "成绩汇总"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 20)
	for i := range subjects {
		col, _ := excelize.ColumnNumberToName(2 + i)
		f.SetColWidth(sheetName, col, col, 12)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 表头
	row := 1
	f.SetCellValue(sheetName, cell("A", row), "学生")
	for i, sub := range subjects {
		f.SetCellValue(sheetName, cell(colName(1+i), row), sub.name)
	}
	base := 1 + len(subjects)
	f.SetCellValue(sheetName, cell(colName(base), row), "总评%")
	f.SetCellValue(sheetName, cell(colName(base+1), row), "等级")
	f.SetCellValue(sheetName, cell(colName(base+2), row), "名次")
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(base+2), row), headerStyle)

	// 数据行
	for _, card := range cards {
		row++
		name := card.StudentID
		if card.Student != nil {
			name = card.Student.Name
		}
		f.SetCellValue(sheetName, cell("A", row), name)

		itemBySubject := make(map[string]*model.ReportCardItem, len(card.Items))
		for i := range card.Items {
			itemBySubject[card.Items[i].SubjectID] = &card.Items[i]
		}
		for i, sub := range subjects {
			c := cell(colName(1+i), row)
			if item, ok := itemBySubject[sub.id]; ok && item.HasScore() {
				f.SetCellValue(sheetName, c, item.Percentage)
			} else {
				f.SetCellValue(sheetName, c, "-")
			}
		}

		if card.Percentage != nil {
			f.SetCellValue(sheetName, cell(colName(base), row), *card.Percentage)
		} else {
			f.SetCellValue(sheetName, cell(colName(base), row), "-")
		}
		if card.Grade != nil {
			f.SetCellValue(sheetName, cell(colName(base+1), row), *card.Grade)
		} else {
			f.SetCellValue(sheetName, cell(colName(base+1), row), "-")
		}
		if card.Position != nil {
			f.SetCellValue(sheetName, cell(colName(base+2), row), *card.Position)
		} else {
			f.SetCellValue(sheetName, cell(colName(base+2), row), "-")
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("成绩汇总_%s_%s.xlsx", classID, termID)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportAuditLogs — 审计记录 Excel
// ═══════════════════════════════════════════════════════════

const auditExportLimit = 5000 // 单次导出上限，防止全表拉取

func (s *exportService) ExportAuditLogs(ctx context.Context, filter repository.AuditLogFilter) (*bytes.Buffer, string, error) {
	logs, _, err := s.repo.SyncAudit.List(ctx, filter, 0, auditExportLimit)
	if err != nil {
		s.logger.Error("查询审计记录失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "同步审计"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"记录ID", "同步类型", "学生ID", "考试ID", "状态", "重试次数", "错误码", "错误信息", "创建时间", "更新时间"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}

	for i, l := range logs {
		row := i + 2
		f.SetCellValue(sheetName, cell("A", row), l.SyncAuditLogID)
		f.SetCellValue(sheetName, cell("B", row), l.SyncType)
		f.SetCellValue(sheetName, cell("C", row), l.StudentID)
		f.SetCellValue(sheetName, cell("D", row), l.ExamID)
		f.SetCellValue(sheetName, cell("E", row), l.Status)
		f.SetCellValue(sheetName, cell("F", row), fmt.Sprintf("%d/%d", l.RetryCount, l.MaxRetries))
		if l.ErrorCode != nil {
			f.SetCellValue(sheetName, cell("G", row), *l.ErrorCode)
		}
		if l.ErrorMessage != nil {
			f.SetCellValue(sheetName, cell("H", row), *l.ErrorMessage)
		}
		f.SetCellValue(sheetName, cell("I", row), l.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, cell("J", row), l.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("同步审计_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportExamCalendar — 学生考试安排 ICS
// ═══════════════════════════════════════════════════════════
//
// 只导出已发布且有起止时间的考试；结束时间缺失时按 1 小时计。

func (s *exportService) ExportExamCalendar(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error) {
	student, err := s.repo.Student.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrExportStudentGone
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, "", err
	}
	if student.ClassID == nil || *student.ClassID == "" {
		return nil, "", ErrExportNoExams
	}

	exams, err := s.repo.Exam.ListByClassTerm(ctx, *student.ClassID, termID)
	if err != nil {
		s.logger.Error("查询考试安排失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Treasure School//Exam Timetable//EN")

	var count int
	for _, exam := range exams {
		if !exam.IsPublished || exam.StartsAt == nil {
			continue
		}
		count++

		ev := cal.AddEvent(fmt.Sprintf("exam-%s@treasure-school", exam.ExamID))
		ev.SetCreatedTime(time.Now())
		ev.SetDtStampTime(time.Now())
		ev.SetStartAt(*exam.StartsAt)
		if exam.EndsAt != nil {
			ev.SetEndAt(*exam.EndsAt)
		} else {
			ev.SetEndAt(exam.StartsAt.Add(time.Hour))
		}
		summary := exam.Name
		if exam.Subject != nil {
			summary = fmt.Sprintf("%s（%s）", exam.Name, exam.Subject.Name)
		}
		ev.SetSummary(summary)
		ev.SetDescription(fmt.Sprintf("考试类型: %s，满分: %d", exam.ExamType, exam.TotalMarks))
	}
	if count == 0 {
		return nil, "", ErrExportNoExams
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("考试安排_%s.ics", student.Name)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
