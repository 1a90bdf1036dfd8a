// Package tokenmeter manages the singleton platform custodial wallet record.
package tokenmeter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

// Store interface for token meter persistence
type Store interface {
	Create(ctx context.Context, meter *entities.TokenMeter) error
	Get(ctx context.Context) (*entities.TokenMeter, error)
	Update(ctx context.Context, meter *entities.TokenMeter) error
}

// CreateInput carries the admin-supplied meter fields.
type CreateInput struct {
	Address  string
	Phrase   string
	TotalCap decimal.Decimal
	Price    decimal.Decimal
}

// Service manages the token meter.
type Service struct {
	store  Store
	logger *logger.Logger
}

// NewService creates a token meter service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// Create sets up the platform wallet record. A second create is rejected.
func (s *Service) Create(ctx context.Context, input CreateInput) (*entities.TokenMeter, error) {
	if input.Address == "" {
		return nil, apperrors.ValidationError("address", "wallet address is required")
	}

	meter := &entities.TokenMeter{
		ID:             uuid.New(),
		Address:        input.Address,
		Phrase:         input.Phrase,
		TotalCollected: decimal.Zero,
		TotalCap:       input.TotalCap,
		Price:          input.Price,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Create(ctx, meter); err != nil {
		return nil, err
	}

	s.logger.Info("Token meter created", "address", meter.Address)
	return meter, nil
}

// Get returns the meter, or ErrTokenMeterMissing when none is configured.
func (s *Service) Get(ctx context.Context) (*entities.TokenMeter, error) {
	return s.store.Get(ctx)
}

// Update merges the non-nil fields of update into the meter.
func (s *Service) Update(ctx context.Context, update entities.TokenMeterUpdate) (*entities.TokenMeter, error) {
	meter, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	update.Apply(meter)
	if err := s.store.Update(ctx, meter); err != nil {
		return nil, fmt.Errorf("updating token meter: %w", err)
	}
	return meter, nil
}
