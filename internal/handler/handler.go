// handler/handler.go
package handler

import (
	"tariff-routing-service/internal/repository"
	"tariff-routing-service/internal/usecase"

	"go.uber.org/zap"
)

// EngineHandler carries the REST surface for the resolution engine
// and its configuration records.
type EngineHandler struct {
	resolUC     *usecase.ResolutionUsecase
	approvalUC  *usecase.ApprovalUsecase
	quota       *usecase.QuotaTracker
	tariffRepo  repository.TariffRepository
	partnerRepo repository.PartnerRepository
	logger      *zap.Logger
}

func NewEngineHandler(
	resolUC *usecase.ResolutionUsecase,
	approvalUC *usecase.ApprovalUsecase,
	quota *usecase.QuotaTracker,
	tariffRepo repository.TariffRepository,
	partnerRepo repository.PartnerRepository,
	logger *zap.Logger,
) *EngineHandler {
	return &EngineHandler{
		resolUC:     resolUC,
		approvalUC:  approvalUC,
		quota:       quota,
		tariffRepo:  tariffRepo,
		partnerRepo: partnerRepo,
		logger:      logger,
	}
}
