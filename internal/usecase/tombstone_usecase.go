package usecase

import (
	"context"
	"fmt"

	"github.com/iho/possync/internal/domain"
)

// TombstoneUseCase tells clients which of their cached codes were deleted on the server.
type TombstoneUseCase struct {
	trashRepo TrashRepository
	metrics   MetricsRecorder
	maxCodes  int
}

// NewTombstoneUseCase creates a new TombstoneUseCase. maxCodes <= 0 uses the default cap.
func NewTombstoneUseCase(trashRepo TrashRepository, metrics MetricsRecorder, maxCodes int) *TombstoneUseCase {
	if metrics == nil {
		metrics = NopMetrics
	}
	if maxCodes <= 0 {
		maxCodes = domain.MaxTombstoneCodes
	}
	return &TombstoneUseCase{trashRepo: trashRepo, metrics: metrics, maxCodes: maxCodes}
}

// Check returns the codes present in the trash but absent from live operations.
func (uc *TombstoneUseCase) Check(ctx context.Context, codes []string) ([]string, error) {
	codes = domain.NormalizeCodes(codes)
	if len(codes) == 0 {
		return []string{}, nil
	}
	if len(codes) > uc.maxCodes {
		return nil, fmt.Errorf("%w: %d submitted, at most %d allowed", domain.ErrTooManyCodes, len(codes), uc.maxCodes)
	}

	deleted, err := uc.trashRepo.DeletedCodes(ctx, codes)
	if err != nil {
		return nil, domain.WrapStorage("check tombstones", err)
	}
	if deleted == nil {
		deleted = []string{}
	}

	uc.metrics.TombstonesFound(len(deleted))

	return deleted, nil
}
