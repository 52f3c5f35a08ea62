package service

import (
	"context"
	"fmt"

	"buydeals/internal/model"
	"buydeals/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dealService implements DealService.
type dealService struct {
	dealRepo repository.DealRepository
	logger   zerolog.Logger
}

// NewDealService creates a new deal service.
func NewDealService(dealRepo repository.DealRepository, logger zerolog.Logger) DealService {
	return &dealService{
		dealRepo: dealRepo,
		logger:   logger.With().Str("service", "deal").Logger(),
	}
}

// List retrieves active deals with pagination.
func (s *dealService) List(ctx context.Context, limit, offset int) ([]model.Deal, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	deals, err := s.dealRepo.ListActive(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list deals")
		return nil, fmt.Errorf("failed to get deals: %w", err)
	}

	s.logger.Debug().
		Int("count", len(deals)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved deals")

	return deals, nil
}

// GetByID retrieves a single deal by ID.
func (s *dealService) GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("deal_id", id.String()).Msg("failed to get deal by ID")
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	if deal == nil {
		s.logger.Debug().Str("deal_id", id.String()).Msg("deal not found")
		return nil, model.ErrDealNotFound
	}

	return deal, nil
}
