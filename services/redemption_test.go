package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/stretchr/testify/require"
)

func submitProof(t *testing.T, f *fixture, actorID string) *models.RedemptionRequest {
	t.Helper()
	req, err := f.redemptions.Submit(context.Background(), actorID, Submission{
		FullName:    "Dewi Lestari",
		Email:       "dewi@example.com",
		EvidenceURL: "https://cdn.example.com/evidence/invoice.png",
	})
	require.NoError(t, err)
	return req
}

func TestApproveCreditsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := submitProof(t, f, "actor-1")
	require.Equal(t, models.RedemptionPending, req.Status)
	require.Equal(t, models.ClaimProofOfPurchase, req.ClaimType)
	require.Equal(t, int64(50_000_000), req.PointsAwarded)
	require.Zero(t, f.balance(t, "actor-1"))

	approved, credit, err := f.redemptions.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.RedemptionApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, "admin-1", *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	require.Equal(t, int64(50_000_000), credit.Applied)
	require.Equal(t, int64(50_000_000), f.balance(t, "actor-1"))

	_, _, err = f.redemptions.Approve(ctx, req.ID, "admin-2")
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.Equal(t, int64(50_000_000), f.balance(t, "actor-1"))

	got, err := f.redemptions.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, "admin-1", *got.ApprovedBy)
}

func TestConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := submitProof(t, f, "actor-1")
	const n = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		decided int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.redemptions.Approve(ctx, req.ID, "admin-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyDecided):
				decided++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, decided)
	require.Equal(t, int64(50_000_000), f.balance(t, "actor-1"))
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := submitProof(t, f, "actor-1")

	rejected, err := f.redemptions.Reject(ctx, req.ID, "admin-1", "invoice is unreadable")
	require.NoError(t, err)
	require.Equal(t, models.RedemptionRejected, rejected.Status)
	require.Equal(t, "invoice is unreadable", rejected.AdminNotes)
	require.Zero(t, f.balance(t, "actor-1"))

	_, _, err = f.redemptions.Approve(ctx, req.ID, "admin-1")
	require.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = f.redemptions.Reject(ctx, req.ID, "admin-1", "again")
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.Zero(t, f.balance(t, "actor-1"))
}

func TestDecidingUnknownRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.redemptions.Approve(ctx, "7f1c3c3e-0000-4000-8000-000000000000", "admin-1")
	require.ErrorIs(t, err, ErrRedemptionNotFound)
	_, err = f.redemptions.Reject(ctx, "7f1c3c3e-0000-4000-8000-000000000000", "admin-1", "")
	require.ErrorIs(t, err, ErrRedemptionNotFound)
	_, err = f.redemptions.Get(ctx, "7f1c3c3e-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, ErrRedemptionNotFound)
}

func TestResubmissionsAreDecidedIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := submitProof(t, f, "actor-1")
	second := submitProof(t, f, "actor-1")
	require.NotEqual(t, first.ID, second.ID)

	_, _, err := f.redemptions.Approve(ctx, first.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.redemptions.Reject(ctx, second.ID, "admin-1", "duplicate proof")
	require.NoError(t, err)

	require.Equal(t, int64(50_000_000), f.balance(t, "actor-1"))

	mine, err := f.redemptions.ListForActor(ctx, "actor-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	pending, err := f.redemptions.List(ctx, models.RedemptionPending)
	require.NoError(t, err)
	require.Empty(t, pending)
	approved, err := f.redemptions.List(ctx, models.RedemptionApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	all, err := f.redemptions.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = f.redemptions.List(ctx, "archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.redemptions.Submit(ctx, "actor-1", Submission{Email: "a@example.com"})
	require.ErrorIs(t, err, ErrMissingEvidence)

	_, err = f.redemptions.Submit(ctx, "actor-1", Submission{EvidenceURL: "https://x", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = f.redemptions.Submit(ctx, "actor-1", Submission{EvidenceURL: "https://x", ClaimType: "nft_mint"})
	require.ErrorIs(t, err, ErrUnknownClaimType)

	_, err = f.redemptions.Submit(ctx, "", Submission{EvidenceURL: "https://x"})
	require.ErrorIs(t, err, ErrInvalidActor)
}

func TestPointsAwardedIsFixedAtSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := submitProof(t, f, "actor-1")
	f.withSettings(t, func(s *GamificationSettings) {
		s.ClaimRewards[models.ClaimProofOfPurchase] = 1_000
	})

	_, credit, err := f.redemptions.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, int64(50_000_000), credit.Applied)

	n, err := f.redemptions.CountPending(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
