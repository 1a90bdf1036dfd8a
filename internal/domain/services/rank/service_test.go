package rank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-jerry/heroku-suibison/internal/domain/entities"
	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
	"github.com/david-jerry/heroku-suibison/pkg/logger"
)

type fakeAccounts struct {
	active  []*entities.Account
	updated int
}

func (f *fakeAccounts) ListActive(_ context.Context) ([]*entities.Account, error) {
	return f.active, nil
}

func (f *fakeAccounts) Update(_ context.Context, _ *entities.Account) error {
	f.updated++
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

type fakeActivities struct {
	records []*entities.Activity
}

func (f *fakeActivities) Create(_ context.Context, activity *entities.Activity) error {
	f.records = append(f.records, activity)
	return nil
}

type fakeRates struct {
	rate decimal.Decimal
	err  error
}

func (f *fakeRates) Current(_ context.Context) (decimal.Decimal, error) {
	return f.rate, f.err
}

type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newFixture(rate string) (*Service, *fakeAccounts, *fakeStakes, *fakeWallets, *fakeActivities) {
	accounts := &fakeAccounts{}
	stakes := &fakeStakes{byUser: make(map[int64]*entities.Stake)}
	wallets := &fakeWallets{byUser: make(map[int64]*entities.Wallet)}
	activities := &fakeActivities{}
	rates := &fakeRates{rate: decimal.RequireFromString(rate)}
	svc := NewService(accounts, stakes, wallets, activities, rates, nopTx{}, logger.NewNop())
	return svc, accounts, stakes, wallets, activities
}

func TestQualify(t *testing.T) {
	cases := []struct {
		name      string
		volume    string
		deposit   string
		referrals int
		want      string
	}{
		{"below first tier", "999", "1000", 10, ""},
		{"leader floor", "1000", "50", 3, "Leader"},
		{"leader ceiling is exclusive", "5000", "100", 5, "Bison King"},
		{"volume in range but deposit short", "1000", "49", 3, ""},
		{"volume in range but referrals short", "1000", "50", 2, ""},
		{"highest satisfied wins", "1000000", "150000", 10, "Supreme Bison"},
		{"huge volume small deposit", "1000000", "100", 10, ""},
		{"mid tier", "30000", "600", 10, "Bison Hon"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier := Qualify(decimal.RequireFromString(tc.volume), decimal.RequireFromString(tc.deposit), tc.referrals)
			if tc.want == "" {
				assert.Nil(t, tier)
				return
			}
			require.NotNil(t, tier)
			assert.Equal(t, tc.want, tier.Name)
		})
	}
}

func TestWeeklyBonusConvertedAtCurrentRate(t *testing.T) {
	svc, _, stakes, wallets, activities := newFixture("2")

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	account := &entities.Account{
		UserID:               1,
		TotalTeamVolume:      decimal.NewFromInt(600), // 1200 USD at rate 2
		TotalDirectReferrals: 3,
	}
	started := now.Add(-time.Hour)
	stakes.byUser[1] = &entities.Stake{UserID: 1, Deposit: decimal.NewFromInt(30), StartedAt: &started} // 60 USD
	wallets.byUser[1] = &entities.Wallet{Address: "0xw", UserID: 1}

	require.NoError(t, svc.ReconcileAccount(context.Background(), account, decimal.NewFromInt(2)))

	require.NotNil(t, account.Rank)
	assert.Equal(t, "Leader", *account.Rank)

	// 25 USD weekly bonus at a 2 USD/SUI rate is 12.5 SUI.
	wallet := wallets.byUser[1]
	assert.True(t, wallet.Earnings.Equal(decimal.RequireFromString("12.5")), "got %s", wallet.Earnings)
	assert.True(t, wallet.WeeklyRankEarnings.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, wallet.TotalRankBonus.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, now, *account.LastRankPaidAt)
	assert.Len(t, activities.records, 1)
}

func TestBonusFiresAtMostOncePerWindow(t *testing.T) {
	svc, _, stakes, wallets, _ := newFixture("1")

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	account := &entities.Account{
		UserID:               1,
		TotalTeamVolume:      decimal.NewFromInt(2000),
		TotalDirectReferrals: 3,
	}
	started := now.Add(-time.Hour)
	stakes.byUser[1] = &entities.Stake{UserID: 1, Deposit: decimal.NewFromInt(100), StartedAt: &started}
	wallets.byUser[1] = &entities.Wallet{Address: "0xw", UserID: 1}

	rate := decimal.NewFromInt(1)
	require.NoError(t, svc.ReconcileAccount(context.Background(), account, rate))
	require.NoError(t, svc.ReconcileAccount(context.Background(), account, rate))

	assert.True(t, wallets.byUser[1].Earnings.Equal(decimal.NewFromInt(25)),
		"re-run inside the window credited twice: %s", wallets.byUser[1].Earnings)

	// Six days later: still inside the window.
	svc.now = func() time.Time { return now.Add(6 * 24 * time.Hour) }
	require.NoError(t, svc.ReconcileAccount(context.Background(), account, rate))
	assert.True(t, wallets.byUser[1].Earnings.Equal(decimal.NewFromInt(25)))

	// Seven days later the window has elapsed and the bonus fires again.
	svc.now = func() time.Time { return now.Add(7 * 24 * time.Hour) }
	require.NoError(t, svc.ReconcileAccount(context.Background(), account, rate))
	assert.True(t, wallets.byUser[1].Earnings.Equal(decimal.NewFromInt(50)),
		"got %s", wallets.byUser[1].Earnings)
}

func TestDisqualifiedAccountLosesRank(t *testing.T) {
	svc, accounts, _, _, activities := newFixture("1")

	name := "Leader"
	account := &entities.Account{
		UserID:               1,
		Rank:                 &name,
		TotalTeamVolume:      decimal.NewFromInt(100),
		TotalDirectReferrals: 3,
	}

	require.NoError(t, svc.ReconcileAccount(context.Background(), account, decimal.NewFromInt(1)))

	assert.Nil(t, account.Rank)
	assert.Equal(t, 1, accounts.updated)
	assert.Empty(t, activities.records, "demotion must not pay a bonus")
}

func TestRunPassSkippedWithoutRate(t *testing.T) {
	svc, accounts, _, _, _ := newFixture("1")
	svc.rates = &fakeRates{err: errors.New("quote source down")}
	accounts.active = []*entities.Account{{UserID: 1}}

	err := svc.RunPass(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, accounts.updated)
}

func TestReconcileRejectsZeroRate(t *testing.T) {
	svc, _, _, _, _ := newFixture("1")

	err := svc.ReconcileAccount(context.Background(), &entities.Account{UserID: 1}, decimal.Zero)
	require.Error(t, err)
}
