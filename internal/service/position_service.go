package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

// PositionService 班级名次业务接口
type PositionService interface {
	// RecomputeClassPositions 重算某班某学期全部名次，幂等
	RecomputeClassPositions(ctx context.Context, classID, termID string) error
}

type positionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPositionService 创建 PositionService 实例
func NewPositionService(repo *repository.Repository, logger *zap.Logger) PositionService {
	return &positionService{repo: repo, logger: logger}
}

// RecomputeClassPositions 竞赛排名：并列者同名次，下一个名次跳过并列数。
// 两人并列第 1 时，第三人是第 3 名（1,1,3,4）。
// 尚无成绩（percentage 为 NULL）的成绩单不参与排名，也不写名次；
// total_students_in_class 按班级范围内的全部成绩单计，未评分者也占人数。
func (s *positionService) RecomputeClassPositions(ctx context.Context, classID, termID string) error {
	cards, err := s.repo.ReportCard.ListByClassTerm(ctx, classID, termID)
	if err != nil {
		return err
	}

	var ranked []model.ReportCard
	for _, c := range cards {
		if c.Percentage != nil {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Percentage > *ranked[j].Percentage
	})

	total := len(cards)
	for i := range ranked {
		position := i + 1
		if i > 0 && *ranked[i].Percentage == *ranked[i-1].Percentage {
			// 与前一名并列
			prev := ranked[i-1]
			if prev.Position != nil {
				position = *prev.Position
			}
		}
		ranked[i].Position = &position

		if err := s.repo.ReportCard.UpdatePosition(ctx, ranked[i].ReportCardID, position, total); err != nil {
			s.logger.Error("写入班级名次失败",
				zap.String("report_card_id", ranked[i].ReportCardID),
				zap.Error(err))
			return err
		}
	}

	s.logger.Debug("班级名次重算完成",
		zap.String("class_id", classID),
		zap.String("term_id", termID),
		zap.Int("ranked", len(ranked)),
		zap.Int("total", total))
	return nil
}
