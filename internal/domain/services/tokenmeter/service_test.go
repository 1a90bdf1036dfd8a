package tokenmeter

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

type fakeStore struct {
	meter *entities.TokenMeter
}

func (f *fakeStore) Create(_ context.Context, meter *entities.TokenMeter) error {
	if f.meter != nil {
		return apperrors.ErrTokenMeterExists
	}
	f.meter = meter
	return nil
}

func (f *fakeStore) Get(_ context.Context) (*entities.TokenMeter, error) {
	if f.meter == nil {
		return nil, apperrors.ErrTokenMeterMissing
	}
	return f.meter, nil
}

func (f *fakeStore) Update(_ context.Context, meter *entities.TokenMeter) error {
	f.meter = meter
	return nil
}

func TestCreateIsSingleton(t *testing.T) {
	svc := NewService(&fakeStore{}, logger.NewNop())

	meter, err := svc.Create(context.Background(), CreateInput{
		Address:  "0xmeter",
		Phrase:   "phrase",
		TotalCap: decimal.NewFromInt(1000000),
		Price:    decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0xmeter", meter.Address)
	assert.True(t, meter.TotalCollected.IsZero())

	_, err = svc.Create(context.Background(), CreateInput{Address: "0xother"})
	assert.ErrorIs(t, err, apperrors.ErrTokenMeterExists)
}

func TestCreateRequiresAddress(t *testing.T) {
	svc := NewService(&fakeStore{}, logger.NewNop())

	_, err := svc.Create(context.Background(), CreateInput{})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestGetWithoutMeter(t *testing.T) {
	svc := NewService(&fakeStore{}, logger.NewNop())

	_, err := svc.Get(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrTokenMeterMissing)
}

func TestUpdateMergesPartialFields(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, logger.NewNop())

	_, err := svc.Create(context.Background(), CreateInput{
		Address: "0xmeter",
		Price:   decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)

	price := decimal.RequireFromString("0.08")
	meter, err := svc.Update(context.Background(), entities.TokenMeterUpdate{Price: &price})
	require.NoError(t, err)

	assert.True(t, meter.Price.Equal(price))
	assert.Equal(t, "0xmeter", meter.Address, "unset fields stay untouched")
}
