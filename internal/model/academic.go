package model

import "time"

// Class 班级表 — 对应 classes
type Class struct {
	ClassID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Name    string `gorm:"type:varchar(100);not null"                     json:"name"`
	Level   string `gorm:"type:varchar(50)"                               json:"level,omitempty"`
	SoftDeleteModel
}

func (Class) TableName() string { return "classes" }

// Subject 科目表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	Code      string `gorm:"type:varchar(20)"                               json:"code,omitempty"`
	SoftDeleteModel
}

func (Subject) TableName() string { return "subjects" }

// Term 学期表 — 对应 terms
type Term struct {
	TermID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"term_id"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsCurrent bool      `gorm:"not null;default:false"                         json:"is_current"`
	SoftDeleteModel
}

func (Term) TableName() string { return "terms" }

// ClassSubject 班级科目花名册 — 对应 class_subjects
type ClassSubject struct {
	ClassSubjectID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_subject_id"`
	ClassID        string    `gorm:"type:uuid;not null"                             json:"class_id"`
	SubjectID      string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	TeacherID      *string   `gorm:"type:uuid"                                      json:"teacher_id,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
}

func (ClassSubject) TableName() string { return "class_subjects" }

// StudentSubject 学生个人选科 — 对应 student_subjects
// 存在个人选科时优先于班级花名册
type StudentSubject struct {
	StudentSubjectID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_subject_id"`
	StudentID        string    `gorm:"type:uuid;not null"                             json:"student_id"`
	SubjectID        string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	TermID           string    `gorm:"type:uuid;not null"                             json:"term_id"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (StudentSubject) TableName() string { return "student_subjects" }

// [自证通过] internal/model/academic.go
