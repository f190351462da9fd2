package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
)

// StudentRepository 学生与花名册数据访问接口
type StudentRepository interface {
	GetStudent(ctx context.Context, id string) (*model.User, error)
	ListByClass(ctx context.Context, classID string) ([]model.User, error)
	// ResolveSubjects 解析学生本学期应修科目：
	// 有个人选科记录时用个人选科，否则回退到班级花名册。
	ResolveSubjects(ctx context.Context, studentID, classID, termID string) ([]string, error)
}

// ── Student Repository 实现 ──

type studentRepo struct {
	db *gorm.DB
}

func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetStudent(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", id, "student").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *studentRepo) ListByClass(ctx context.Context, classID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND role = ?", classID, "student").
		Order("name ASC").
		Find(&users).Error
	return users, err
}

func (r *studentRepo) ResolveSubjects(ctx context.Context, studentID, classID, termID string) ([]string, error) {
	var personal []string
	err := r.db.WithContext(ctx).
		Model(&model.StudentSubject{}).
		Where("student_id = ? AND term_id = ?", studentID, termID).
		Pluck("subject_id", &personal).Error
	if err != nil {
		return nil, err
	}
	if len(personal) > 0 {
		return personal, nil
	}

	var fromClass []string
	err = r.db.WithContext(ctx).
		Model(&model.ClassSubject{}).
		Where("class_id = ?", classID).
		Pluck("subject_id", &fromClass).Error
	return fromClass, err
}
