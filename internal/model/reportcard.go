package model

// ── 成绩单状态 ──

const (
	ReportCardStatusDraft     = "draft"
	ReportCardStatusFinalized = "finalized"
	ReportCardStatusPublished = "published"
)

// ReportCard 成绩单聚合根 — 对应 report_cards
// 不变量：每个 (student_id, term_id) 至多一份未删除成绩单（部分唯一索引保证）。
// percentage/grade 在任何科目有成绩之前保持 NULL，以区分"未评分"和"零分"。
type ReportCard struct {
	ReportCardID         string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"report_card_id"`
	StudentID            string   `gorm:"type:uuid;not null"                             json:"student_id"`
	ClassID              string   `gorm:"type:uuid;not null"                             json:"class_id"`
	TermID               string   `gorm:"type:uuid;not null"                             json:"term_id"`
	GradingScale         string   `gorm:"type:varchar(50);not null;default:'standard'"   json:"grading_scale"`
	Status               string   `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"`
	ObtainedMarks        float64  `gorm:"type:numeric(8,1);not null;default:0"           json:"obtained_marks"`
	TotalMarks           float64  `gorm:"type:numeric(8,1);not null;default:0"           json:"total_marks"`
	Percentage           *float64 `gorm:"type:numeric(5,1)"                              json:"percentage,omitempty"`
	Grade                *string  `gorm:"type:varchar(5)"                                json:"grade,omitempty"`
	Remarks              *string  `gorm:"type:varchar(100)"                              json:"remarks,omitempty"`
	Position             *int     `json:"position,omitempty"`
	TotalStudentsInClass *int     `json:"total_students_in_class,omitempty"`
	Locked               bool     `gorm:"not null;default:false"                         json:"locked"`
	SoftDeleteModel

	// 关联
	Student *User            `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
	Items   []ReportCardItem `gorm:"foreignKey:ReportCardID"                json:"items,omitempty"`
}

func (ReportCard) TableName() string { return "report_cards" }

// ReportCardItem 成绩单科目明细 — 对应 report_card_items
// 不变量：每个 (report_card_id, subject_id) 恰好一行；加权分永远由当前存储的
// 平时/考试两个分量整体重算，不做增量累加。is_overridden=true 的行对自动同步免疫。
type ReportCardItem struct {
	ReportCardItemID string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"report_card_item_id"`
	ReportCardID     string   `gorm:"type:uuid;not null"                             json:"report_card_id"`
	SubjectID        string   `gorm:"type:uuid;not null"                             json:"subject_id"`
	TestScore        *float64 `gorm:"type:numeric(6,1)"                              json:"test_score,omitempty"`
	TestMaxScore     *float64 `gorm:"type:numeric(6,1)"                              json:"test_max_score,omitempty"`
	ExamScore        *float64 `gorm:"type:numeric(6,1)"                              json:"exam_score,omitempty"`
	ExamMaxScore     *float64 `gorm:"type:numeric(6,1)"                              json:"exam_max_score,omitempty"`
	TestWeighted     float64  `gorm:"type:numeric(6,1);not null;default:0"           json:"test_weighted"`
	ExamWeighted     float64  `gorm:"type:numeric(6,1);not null;default:0"           json:"exam_weighted"`
	ObtainedMarks    float64  `gorm:"type:numeric(6,1);not null;default:0"           json:"obtained_marks"`
	Percentage       float64  `gorm:"type:numeric(5,1);not null;default:0"           json:"percentage"`
	Grade            *string  `gorm:"type:varchar(5)"                                json:"grade,omitempty"`
	Remarks          *string  `gorm:"type:varchar(100)"                              json:"remarks,omitempty"`
	IsOverridden     bool     `gorm:"not null;default:false"                         json:"is_overridden"`
	BaseModel

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
}

func (ReportCardItem) TableName() string { return "report_card_items" }

// HasScore 该科目是否已有任一分量成绩（计入成绩单平均分的条件）
func (i *ReportCardItem) HasScore() bool {
	return i.TestScore != nil || i.ExamScore != nil
}

// [自证通过] internal/model/reportcard.go
