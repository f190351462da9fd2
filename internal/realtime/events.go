package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
)

// newEnvelope 构造事件信封
func newEnvelope(eventType string, payload map[string]any) dto.EventEnvelope {
	return dto.EventEnvelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// 每个 Emit 负责算出自己的主题集合：资源自身主题、所属班级/学生主题、
// 相关表级主题。跨主题去重由 Publish 保证，发布侧不再查权限。

// EmitReportCardChanged 成绩单变更：推给成绩单主题、学生本人、所在班级和成绩单表
func (h *Hub) EmitReportCardChanged(p dto.ReportCardChangedPayload) {
	h.Publish(
		[]string{
			TopicReportCard(p.ReportCardID),
			TopicStudent(p.StudentID),
			TopicClass(p.ClassID),
			TopicTable("report_cards"),
		},
		newEnvelope(dto.EventReportCardChanged, map[string]any{
			"report_card_id": p.ReportCardID,
			"student_id":     p.StudentID,
			"class_id":       p.ClassID,
			"term_id":        p.TermID,
			"subject_id":     p.SubjectID,
		}),
	)
}

// EmitExamPublished 考试发布：推给考试主题、班级主题和考试表
func (h *Hub) EmitExamPublished(examID, classID, subjectID string) {
	h.Publish(
		[]string{TopicExam(examID), TopicClass(classID), TopicTable("exams")},
		newEnvelope(dto.EventExamPublished, map[string]any{
			"exam_id":    examID,
			"class_id":   classID,
			"subject_id": subjectID,
		}),
	)
}

// EmitExamUnpublished 考试撤回发布：推给考试主题、班级主题和考试表
func (h *Hub) EmitExamUnpublished(examID, classID string) {
	h.Publish(
		[]string{TopicExam(examID), TopicClass(classID), TopicTable("exams")},
		newEnvelope(dto.EventExamUnpublished, map[string]any{
			"exam_id":  examID,
			"class_id": classID,
		}),
	)
}

// EmitExamSessionCompleted 学生交卷：推给考试主题、学生主题和班级主题
func (h *Hub) EmitExamSessionCompleted(examID, studentID, classID string) {
	h.Publish(
		[]string{TopicExam(examID), TopicStudent(studentID), TopicClass(classID)},
		newEnvelope(dto.EventExamSessionCompleted, map[string]any{
			"exam_id":    examID,
			"student_id": studentID,
			"class_id":   classID,
		}),
	)
}

// EmitGradingReviewed 人工复核完成：推给考试主题和学生主题
func (h *Hub) EmitGradingReviewed(examID, studentID string) {
	h.Publish(
		[]string{TopicExam(examID), TopicStudent(studentID)},
		newEnvelope(dto.EventGradingReviewed, map[string]any{
			"exam_id":    examID,
			"student_id": studentID,
		}),
	)
}
