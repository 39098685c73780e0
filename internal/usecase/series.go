package usecase

import (
	"context"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
)

// SeriesUseCase backs the data-source picker.
type SeriesUseCase struct {
	source drepo.SeriesSource
	limit  int
}

func NewSeriesUseCase(source drepo.SeriesSource, limit int) *SeriesUseCase {
	return &SeriesUseCase{source: source, limit: limit}
}

// Search returns one page of series options. It never fails.
func (uc *SeriesUseCase) Search(ctx context.Context, q string, offset int) models.SearchResult {
	if offset < 0 {
		offset = 0
	}
	return uc.source.SearchSeries(ctx, q, offset, uc.limit)
}
