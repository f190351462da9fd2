package service

import (
	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Sync       SyncService
	Position   PositionService
	ReportCard ReportCardService
	Export     ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	emitter Emitter,
	logger *zap.Logger,
) *Service {
	position := NewPositionService(repo, logger)
	return &Service{
		Sync:       NewSyncService(&cfg.Sync, repo, position, emitter, logger),
		Position:   position,
		ReportCard: NewReportCardService(repo, logger),
		Export:     NewExportService(repo, logger),
	}
}
