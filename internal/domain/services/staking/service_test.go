package staking

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-jerry/heroku-suibison/internal/adapters/sui"
	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

type fakeAccounts struct {
	byID map[int64]*entities.Account
}

func (f *fakeAccounts) GetByID(_ context.Context, userID int64) (*entities.Account, error) {
	account, ok := f.byID[userID]
	if !ok {
		return nil, apperrors.NotFoundError("account")
	}
	return account, nil
}

func (f *fakeAccounts) ListActive(_ context.Context) ([]*entities.Account, error) {
	ids := make([]int64, 0, len(f.byID))
	for id, account := range f.byID {
		if account.IsBlocked || account.IsAdmin {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts := make([]*entities.Account, len(ids))
	for i, id := range ids {
		accounts[i] = f.byID[id]
	}
	return accounts, nil
}

func (f *fakeAccounts) Update(_ context.Context, account *entities.Account) error {
	f.byID[account.UserID] = account
	return nil
}

type fakeWallets struct {
	byUser map[int64]*entities.Wallet
}

func (f *fakeWallets) GetByUserID(_ context.Context, userID int64) (*entities.Wallet, error) {
	wallet, ok := f.byUser[userID]
	if !ok {
		return nil, apperrors.NotFoundError("wallet")
	}
	return wallet, nil
}

func (f *fakeWallets) Update(_ context.Context, wallet *entities.Wallet) error {
	f.byUser[wallet.UserID] = wallet
	return nil
}

type fakeStakes struct {
	byUser map[int64]*entities.Stake
}

func (f *fakeStakes) GetByUserID(_ context.Context, userID int64) (*entities.Stake, error) {
	stake, ok := f.byUser[userID]
	if !ok {
		return nil, apperrors.NotFoundError("stake")
	}
	return stake, nil
}

func (f *fakeStakes) Create(_ context.Context, stake *entities.Stake) error {
	if _, exists := f.byUser[stake.UserID]; exists {
		return apperrors.AlreadyExistsError("stake")
	}
	f.byUser[stake.UserID] = stake
	return nil
}

func (f *fakeStakes) Update(_ context.Context, stake *entities.Stake) error {
	f.byUser[stake.UserID] = stake
	return nil
}

type fakeMeter struct {
	meter *entities.TokenMeter
}

func (f *fakeMeter) Get(_ context.Context) (*entities.TokenMeter, error) {
	if f.meter == nil {
		return nil, apperrors.ErrTokenMeterMissing
	}
	return f.meter, nil
}

func (f *fakeMeter) Update(_ context.Context, meter *entities.TokenMeter) error {
	f.meter = meter
	return nil
}

type fakeActivities struct {
	records []*entities.Activity
}

func (f *fakeActivities) Create(_ context.Context, activity *entities.Activity) error {
	f.records = append(f.records, activity)
	return nil
}

type referralCall struct {
	userID int64
	amount decimal.Decimal
}

type fakeReferral struct {
	distributed []referralCall
	volumeAdded []referralCall
}

func (f *fakeReferral) Distribute(_ context.Context, downlineID int64, amount decimal.Decimal) error {
	f.distributed = append(f.distributed, referralCall{downlineID, amount})
	return nil
}

func (f *fakeReferral) AddTeamVolume(_ context.Context, downlineID int64, amount decimal.Decimal) error {
	f.volumeAdded = append(f.volumeAdded, referralCall{downlineID, amount})
	return nil
}

type fakePool struct {
	recorded []int64
}

func (f *fakePool) RecordDeposit(_ context.Context, account *entities.Account) error {
	f.recorded = append(f.recorded, account.UserID)
	return nil
}

type fakeGateway struct {
	balance     decimal.Decimal
	byAddress   map[string]decimal.Decimal
	balanceErrs map[string]error
	sweeps      int
	sweepErr    error
	lastOwner   string
	lastDest    string
}

func (f *fakeGateway) GetBalance(_ context.Context, address string) (decimal.Decimal, error) {
	if err, ok := f.balanceErrs[address]; ok {
		return decimal.Zero, err
	}
	if balance, ok := f.byAddress[address]; ok {
		return balance, nil
	}
	return f.balance, nil
}

func (f *fakeGateway) GetCoins(_ context.Context, _ string) ([]sui.Coin, error) {
	return nil, nil
}

func (f *fakeGateway) PaySui(_ context.Context, _, _, _ string, _ decimal.Decimal) (*sui.ExecuteResult, error) {
	return nil, errors.New("unexpected PaySui")
}

func (f *fakeGateway) PayAllSui(_ context.Context, ownerAddress, _, recipient string) (*sui.ExecuteResult, error) {
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	f.sweeps++
	f.lastOwner = ownerAddress
	f.lastDest = recipient
	return &sui.ExecuteResult{Status: "success", Digest: "0xdigest"}, nil
}

type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc      *Service
	accounts *fakeAccounts
	wallets  *fakeWallets
	stakes   *fakeStakes
	meter    *fakeMeter
	referral *fakeReferral
	pool     *fakePool
	gateway  *fakeGateway
}

func newFixture(balance string) *fixture {
	f := &fixture{
		accounts: &fakeAccounts{byID: make(map[int64]*entities.Account)},
		wallets:  &fakeWallets{byUser: make(map[int64]*entities.Wallet)},
		stakes:   &fakeStakes{byUser: make(map[int64]*entities.Stake)},
		meter:    &fakeMeter{meter: &entities.TokenMeter{ID: uuid.New(), Address: "0xmeter", Phrase: "meter phrase"}},
		referral: &fakeReferral{},
		pool:     &fakePool{},
		gateway:  &fakeGateway{balance: decimal.RequireFromString(balance)},
	}
	f.svc = NewService(
		f.accounts, f.wallets, f.stakes, f.meter, &fakeActivities{},
		f.referral, f.pool, f.gateway, nopTx{},
		Config{
			MinStakeAmount:    decimal.NewFromInt(1),
			DepositFeePercent: decimal.RequireFromString("0.10"),
		},
		logger.NewNop(),
	)
	f.accounts.byID[1] = &entities.Account{UserID: 1, Joined: time.Now().UTC()}
	f.wallets.byUser[1] = &entities.Wallet{Address: "0xuser", Phrase: "user phrase", UserID: 1}
	return f
}

func TestDepositRoutesFeeAndPrincipal(t *testing.T) {
	f := newFixture("100")

	stake, err := f.svc.Deposit(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, stake.Deposit.Equal(decimal.NewFromInt(90)), "got %s", stake.Deposit)
	assert.True(t, f.meter.meter.TotalCollected.Equal(decimal.NewFromInt(10)), "got %s", f.meter.meter.TotalCollected)
	assert.True(t, f.wallets.byUser[1].TotalDeposit.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, f.gateway.sweeps)
	assert.Equal(t, "0xuser", f.gateway.lastOwner)
	assert.Equal(t, "0xmeter", f.gateway.lastDest)
}

func TestDepositStartsAccrualClock(t *testing.T) {
	f := newFixture("10")

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	stake, err := f.svc.Deposit(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, stake.ROI.Equal(entities.ROIBase))
	require.NotNil(t, stake.StartedAt)
	assert.Equal(t, now, *stake.StartedAt)
	assert.Equal(t, now.Add(entities.ROIIncreaseInterval), *stake.NextROIIncreaseAt)
	assert.Equal(t, now, *stake.LastEarningAt)
	assert.Nil(t, stake.EndingAt)
}

func TestFirstDepositSideEffects(t *testing.T) {
	f := newFixture("100")

	_, err := f.svc.Deposit(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, f.accounts.byID[1].HasDeposited)
	assert.Equal(t, []int64{1}, f.pool.recorded)
	require.Len(t, f.referral.distributed, 1)
	assert.True(t, f.referral.distributed[0].amount.Equal(decimal.NewFromInt(90)),
		"commission base must be the net amount, got %s", f.referral.distributed[0].amount)
	require.Len(t, f.referral.volumeAdded, 1)
	assert.True(t, f.referral.volumeAdded[0].amount.Equal(decimal.NewFromInt(90)))
}

func TestSecondDepositSkipsPoolEnrollment(t *testing.T) {
	f := newFixture("100")

	_, err := f.svc.Deposit(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.svc.Deposit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, f.pool.recorded, "pool enrollment must fire only on the first deposit")
	assert.Len(t, f.referral.distributed, 2, "commissions fire on every deposit")

	stake := f.stakes.byUser[1]
	assert.True(t, stake.Deposit.Equal(decimal.NewFromInt(180)), "got %s", stake.Deposit)
}

func TestDepositBelowMinimumRejected(t *testing.T) {
	f := newFixture("0.5")

	_, err := f.svc.Deposit(context.Background(), 1)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STAKE_AMOUNT", domainErr.Code)
	assert.Equal(t, 0, f.gateway.sweeps, "no on-chain transfer on a rejected deposit")
}

func TestDepositBlockedUserRejected(t *testing.T) {
	f := newFixture("100")
	f.accounts.byID[1].IsBlocked = true

	_, err := f.svc.Deposit(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrUserBlocked)
	assert.Equal(t, 0, f.gateway.sweeps)
}

func TestDepositSweepFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture("100")
	f.gateway.sweepErr = errors.New("wallet service unreachable")

	_, err := f.svc.Deposit(context.Background(), 1)
	require.Error(t, err)

	_, stakeErr := f.stakes.GetByUserID(context.Background(), 1)
	assert.True(t, apperrors.IsNotFound(stakeErr), "no stake may exist after a failed sweep")
	assert.True(t, f.meter.meter.TotalCollected.IsZero())
	assert.False(t, f.accounts.byID[1].HasDeposited)
}

func TestDepositWithoutTokenMeterFails(t *testing.T) {
	f := newFixture("100")
	f.meter.meter = nil

	_, err := f.svc.Deposit(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrTokenMeterMissing)
}

func TestSweepStakesBalancesAtOrAboveMinimum(t *testing.T) {
	f := newFixture("0")
	f.accounts.byID[2] = &entities.Account{UserID: 2, Joined: time.Now().UTC()}
	f.wallets.byUser[2] = &entities.Wallet{Address: "0xother", Phrase: "other phrase", UserID: 2}
	f.gateway.byAddress = map[string]decimal.Decimal{
		"0xuser":  decimal.NewFromInt(100),
		"0xother": decimal.RequireFromString("0.4"),
	}

	require.NoError(t, f.svc.RunSweepPass(context.Background()))

	require.NotNil(t, f.stakes.byUser[1])
	assert.True(t, f.stakes.byUser[1].Deposit.Equal(decimal.NewFromInt(90)), "got %s", f.stakes.byUser[1].Deposit)
	assert.Equal(t, 1, f.gateway.sweeps)

	// The sub-minimum balance stays on chain, tracked as pending.
	_, stakeErr := f.stakes.GetByUserID(context.Background(), 2)
	assert.True(t, apperrors.IsNotFound(stakeErr))
	assert.True(t, f.wallets.byUser[2].PendingBalance.Equal(decimal.RequireFromString("0.4")),
		"got %s", f.wallets.byUser[2].PendingBalance)
}

func TestSweepClearsPendingOnceBalanceReachesMinimum(t *testing.T) {
	f := newFixture("5")
	f.wallets.byUser[1].PendingBalance = decimal.RequireFromString("0.4")

	require.NoError(t, f.svc.RunSweepPass(context.Background()))

	assert.True(t, f.wallets.byUser[1].PendingBalance.IsZero(),
		"pending must clear when the balance finally stakes, got %s", f.wallets.byUser[1].PendingBalance)
	assert.True(t, f.stakes.byUser[1].Deposit.Equal(decimal.RequireFromString("4.5")))
}

func TestSweepSkipsBlockedAndAdminAccounts(t *testing.T) {
	f := newFixture("100")
	f.accounts.byID[1].IsBlocked = true
	f.accounts.byID[2] = &entities.Account{UserID: 2, IsAdmin: true, Joined: time.Now().UTC()}
	f.wallets.byUser[2] = &entities.Wallet{Address: "0xadmin", Phrase: "admin phrase", UserID: 2}

	require.NoError(t, f.svc.RunSweepPass(context.Background()))

	assert.Equal(t, 0, f.gateway.sweeps)
	assert.Empty(t, f.stakes.byUser)
}

func TestSweepIsolatesAccountFailures(t *testing.T) {
	f := newFixture("100")
	f.accounts.byID[2] = &entities.Account{UserID: 2, Joined: time.Now().UTC()}
	f.wallets.byUser[2] = &entities.Wallet{Address: "0xother", Phrase: "other phrase", UserID: 2}
	f.gateway.balanceErrs = map[string]error{"0xuser": sui.ErrGatewayUnreachable}

	require.NoError(t, f.svc.RunSweepPass(context.Background()))

	_, stakeErr := f.stakes.GetByUserID(context.Background(), 1)
	assert.True(t, apperrors.IsNotFound(stakeErr))
	require.NotNil(t, f.stakes.byUser[2])
	assert.True(t, f.stakes.byUser[2].Deposit.Equal(decimal.NewFromInt(90)))
}
