package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreditClampsAtCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withSettings(t, func(s *GamificationSettings) { s.MaxPointsPerUser = 1000 })

	_, err := f.ledger.Credit(ctx, "actor-1", 998, models.ReasonAdjustment, "seed")
	require.NoError(t, err)

	res, err := f.ledger.Credit(ctx, "actor-1", 50, models.ReasonTask, "social_share")
	require.NoError(t, err)
	require.Equal(t, int64(50), res.Requested)
	require.Equal(t, int64(2), res.Applied)
	require.Equal(t, int64(1000), res.Balance)
	require.True(t, res.Capped)

	res, err = f.ledger.Credit(ctx, "actor-1", 10, models.ReasonTask, "social_share")
	require.NoError(t, err)
	require.Zero(t, res.Applied)
	require.Equal(t, int64(1000), res.Balance)
	require.True(t, res.Capped)
}

func TestCreditDoesNotLowerBalanceAboveReducedCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, "actor-1", 1000, models.ReasonAdjustment, "seed")
	require.NoError(t, err)
	f.withSettings(t, func(s *GamificationSettings) { s.MaxPointsPerUser = 500 })

	res, err := f.ledger.Credit(ctx, "actor-1", 10, models.ReasonTask, "social_share")
	require.NoError(t, err)
	require.Zero(t, res.Applied)
	require.Equal(t, int64(1000), res.Balance)
}

func TestDebitFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, "actor-1", 30, models.ReasonAdjustment, "seed")
	require.NoError(t, err)

	res, err := f.ledger.Debit(ctx, "actor-1", 100, models.ReasonAdjustment, "correction")
	require.NoError(t, err)
	require.Equal(t, int64(-30), res.Applied)
	require.Zero(t, res.Balance)
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, "actor-1", 0, models.ReasonTask, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.ledger.Credit(ctx, "actor-1", -5, models.ReasonTask, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.ledger.Debit(ctx, "actor-1", 0, models.ReasonTask, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.ledger.Credit(ctx, "", 5, models.ReasonTask, "")
	require.ErrorIs(t, err, ErrInvalidActor)
}

func TestConcurrentCreditsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Credit(ctx, "actor-1", 1, models.ReasonAction, "voucher_copy")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int64(n), f.balance(t, "actor-1"))

	entries, err := f.ledger.ListLedger(ctx, "actor-1", 100)
	require.NoError(t, err)
	require.Len(t, entries, n)
}

func TestGetActorProvisionsAtZero(t *testing.T) {
	f := newFixture(t)

	actor, err := f.ledger.GetActor(context.Background(), "visitor-abc")
	require.NoError(t, err)
	require.Zero(t, actor.Points)
	require.False(t, actor.NFTClaimed)

	// second read finds the same row
	actor, err = f.ledger.GetActor(context.Background(), "visitor-abc")
	require.NoError(t, err)
	require.Equal(t, "visitor-abc", actor.ID)
}

func TestLedgerEntriesRecordAppliedChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withSettings(t, func(s *GamificationSettings) { s.MaxPointsPerUser = 100 })

	_, err := f.ledger.Credit(ctx, "actor-1", 80, models.ReasonAdjustment, "seed")
	require.NoError(t, err)
	_, err = f.ledger.Credit(ctx, "actor-1", 50, models.ReasonTask, "referral")
	require.NoError(t, err)

	var entries []models.PointLedgerEntry
	require.NoError(t, f.db.Where("actor_id = ?", "actor-1").Order("balance_after ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	require.Equal(t, int64(80), entries[0].Applied)
	require.Equal(t, int64(50), entries[1].Requested)
	require.Equal(t, int64(20), entries[1].Applied)
	require.Equal(t, int64(100), entries[1].BalanceAfter)
	require.Equal(t, models.ReasonTask, entries[1].Reason)
	require.Equal(t, "referral", entries[1].Reference)
}

func creditedTotal(t *testing.T, reason models.LedgerReason) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metricPointsCredited.WithLabelValues(string(reason)).Write(&m))
	return m.GetCounter().GetValue()
}

func TestRolledBackCreditIsNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reason := models.LedgerReason("rollback_check")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.CreditTx(tx, "actor-1", 40, reason, "aborted", t0)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)
	require.Zero(t, f.balance(t, "actor-1"))
	require.Zero(t, creditedTotal(t, reason))

	_, err = f.ledger.Credit(ctx, "actor-1", 40, reason, "committed")
	require.NoError(t, err)
	require.Equal(t, float64(40), creditedTotal(t, reason))
}

func TestLongReferenceKeepsValidUTF8(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note := strings.Repeat("é", 300)
	_, err := f.actors.AdjustPoints(ctx, "actor-1", 10, note)
	require.NoError(t, err)

	entries, err := f.ledger.ListLedger(ctx, "actor-1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, utf8.ValidString(entries[0].Reference))
	require.Equal(t, 255, utf8.RuneCountInString(entries[0].Reference))

	require.Equal(t, "ab", truncate("ab", 255))
	require.Equal(t, "日本", truncate("日本語", 2))
}
