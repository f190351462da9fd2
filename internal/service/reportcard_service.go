package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

// ── 成绩单模块业务错误 ──

var (
	ErrReportCardNotFound = errors.New("成绩单不存在")
)

// ReportCardService 成绩单读接口
type ReportCardService interface {
	// GetStudentReportCard 取某学生某学期的成绩单（含科目明细）
	GetStudentReportCard(ctx context.Context, studentID, termID string) (*model.ReportCard, error)
	GetByID(ctx context.Context, id string) (*model.ReportCard, error)
	// ListClass 某班某学期成绩单列表，按名次升序，未排名的排最后
	ListClass(ctx context.Context, classID, termID string) ([]model.ReportCard, error)
}

type reportCardService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReportCardService 创建 ReportCardService 实例
func NewReportCardService(repo *repository.Repository, logger *zap.Logger) ReportCardService {
	return &reportCardService{repo: repo, logger: logger}
}

func (s *reportCardService) GetStudentReportCard(ctx context.Context, studentID, termID string) (*model.ReportCard, error) {
	card, err := s.repo.ReportCard.GetByStudentTerm(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportCardNotFound
		}
		s.logger.Error("查询成绩单失败", zap.Error(err))
		return nil, err
	}
	return card, nil
}

func (s *reportCardService) GetByID(ctx context.Context, id string) (*model.ReportCard, error) {
	card, err := s.repo.ReportCard.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportCardNotFound
		}
		s.logger.Error("查询成绩单失败", zap.Error(err))
		return nil, err
	}
	return card, nil
}

func (s *reportCardService) ListClass(ctx context.Context, classID, termID string) ([]model.ReportCard, error) {
	cards, err := s.repo.ReportCard.ListByClassTerm(ctx, classID, termID)
	if err != nil {
		s.logger.Error("查询班级成绩单失败", zap.Error(err))
		return nil, err
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
	return cards, nil
}
