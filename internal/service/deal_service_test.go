package service

import (
	"context"
	"errors"
	"testing"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealService_List(t *testing.T) {
	tests := []struct {
		name           string
		limit          int
		offset         int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "Valid pagination", limit: 20, offset: 40, expectedLimit: 20, expectedOffset: 40},
		{name: "Zero limit defaults to 10", limit: 0, offset: 0, expectedLimit: 10, expectedOffset: 0},
		{name: "Limit capped at 100", limit: 500, offset: 0, expectedLimit: 100, expectedOffset: 0},
		{name: "Negative offset becomes 0", limit: 10, offset: -5, expectedLimit: 10, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := new(MockDealRepository)
			deals := []model.Deal{{ID: uuid.New(), Title: "Spa weekend", DealPrice: dec("49.90"), IsActive: true}}
			repo.On("ListActive", ctx, tt.expectedLimit, tt.expectedOffset).Return(deals, nil)

			svc := NewDealService(repo, zerolog.Nop())
			got, err := svc.List(ctx, tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Equal(t, deals, got)
			repo.AssertExpectations(t)
		})
	}
}

func TestDealService_List_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDealRepository)
	repo.On("ListActive", ctx, 10, 0).Return(nil, errors.New("connection refused"))

	svc := NewDealService(repo, zerolog.Nop())
	_, err := svc.List(ctx, 10, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get deals")
}

func TestDealService_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Found", func(t *testing.T) {
		repo := new(MockDealRepository)
		deal := &model.Deal{ID: id, Title: "Dinner for two"}
		repo.On("GetByID", ctx, id).Return(deal, nil)

		got, err := NewDealService(repo, zerolog.Nop()).GetByID(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, deal, got)
	})

	t.Run("Not found", func(t *testing.T) {
		repo := new(MockDealRepository)
		repo.On("GetByID", ctx, id).Return(nil, nil)

		_, err := NewDealService(repo, zerolog.Nop()).GetByID(ctx, id)

		assert.ErrorIs(t, err, model.ErrDealNotFound)
	})
}
