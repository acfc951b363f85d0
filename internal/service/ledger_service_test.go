package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/models"
)

func TestLedgerServiceCreditAppendsSnapshotRow(t *testing.T) {
	profiles := newProfileRepoStub(&models.UserProfile{ID: "user-1", CoinBalance: 100})
	ledger := &ledgerRepoStub{}
	svc := NewLedgerService(profiles, ledger, testLogger())

	entry, err := svc.Credit(context.Background(), "user-1", 50, models.LedgerReasonReward, map[string]interface{}{"source": "test"})
	require.NoError(t, err)
	require.Equal(t, int64(50), entry.Amount)
	require.Equal(t, int64(150), entry.BalanceAfter)

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(150), balance)
	require.Len(t, ledger.entries, 1)
}

func TestLedgerServiceDebitRejectsOverdraft(t *testing.T) {
	profiles := newProfileRepoStub(&models.UserProfile{ID: "user-2", CoinBalance: 30})
	ledger := &ledgerRepoStub{}
	svc := NewLedgerService(profiles, ledger, testLogger())

	_, err := svc.Debit(context.Background(), "user-2", 31, models.LedgerReasonGiftPurchase, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := svc.Balance(context.Background(), "user-2")
	require.NoError(t, err)
	require.Equal(t, int64(30), balance)
	require.Empty(t, ledger.entries)
}

func TestLedgerServiceRejectsNonPositiveAmounts(t *testing.T) {
	profiles := newProfileRepoStub(&models.UserProfile{ID: "user-3", CoinBalance: 10})
	svc := NewLedgerService(profiles, &ledgerRepoStub{}, testLogger())

	_, err := svc.Credit(context.Background(), "user-3", 0, models.LedgerReasonReward, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Debit(context.Background(), "user-3", -5, models.LedgerReasonGiftPurchase, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedgerServiceUnknownUser(t *testing.T) {
	svc := NewLedgerService(newProfileRepoStub(), &ledgerRepoStub{}, testLogger())

	_, err := svc.Credit(context.Background(), "ghost", 10, models.LedgerReasonReward, nil)
	require.ErrorIs(t, err, ErrLedgerUserNotFound)

	_, err = svc.Balance(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrLedgerUserNotFound)
}

func TestLedgerServiceCompensatesFailedInsert(t *testing.T) {
	profiles := newProfileRepoStub(&models.UserProfile{ID: "user-4", CoinBalance: 200})
	ledger := &ledgerRepoStub{insertErr: errStubFailure}
	svc := NewLedgerService(profiles, ledger, testLogger())

	_, err := svc.Credit(context.Background(), "user-4", 75, models.LedgerReasonGiftReceived, nil)
	require.ErrorIs(t, err, errStubFailure)

	// Balance must be restored to its pre-call value.
	balance, err := svc.Balance(context.Background(), "user-4")
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)
	require.Empty(t, ledger.entries)
}

func TestLedgerServiceHistoryFiltersByReason(t *testing.T) {
	profiles := newProfileRepoStub(&models.UserProfile{ID: "user-5", CoinBalance: 0})
	ledger := &ledgerRepoStub{}
	svc := NewLedgerService(profiles, ledger, testLogger())

	_, err := svc.Credit(context.Background(), "user-5", 10, models.LedgerReasonReward, nil)
	require.NoError(t, err)
	_, err = svc.Credit(context.Background(), "user-5", 20, models.LedgerReasonGiftReceived, nil)
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), "user-5", dto.LedgerHistoryQuery{Reason: models.LedgerReasonReward})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(10), entries[0].Amount)
}

func TestCoinsToUSD(t *testing.T) {
	require.Equal(t, "1.00", CoinsToUSD(200))
	require.Equal(t, "0.50", CoinsToUSD(100))
	require.Equal(t, "0.00", CoinsToUSD(0))
	require.Equal(t, "4.75", CoinsToUSD(950))
	// Fractional cents floor.
	require.Equal(t, "0.00", CoinsToUSD(1))
	require.Equal(t, "0.01", CoinsToUSD(3))
}
