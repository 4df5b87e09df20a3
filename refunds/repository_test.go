package refunds_test

import (
	"context"
	"errors"
	"testing"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMarkExportedIdempotent(t *testing.T) {
	repo := refunds.NewRepository()
	ctx := context.Background()

	a := seedCandidate(t, repo, "card-a", "10.00")
	b := seedCandidate(t, repo, "card-b", "10.00")

	updated, err := repo.MarkExported(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{a.ID, b.ID}, updated)

	// second call with the same set is a no-op, not an error
	updated, err = repo.MarkExported(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Empty(t, updated)

	remaining, err := repo.ListUnexportedCandidates(ctx)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestMarkExportedPartial(t *testing.T) {
	repo := refunds.NewRepository()
	ctx := context.Background()

	a := seedCandidate(t, repo, "card-a", "10.00")
	b := seedCandidate(t, repo, "card-b", "10.00")

	_, err := repo.MarkExported(ctx, []int64{a.ID})
	require.NoError(t, err)

	// a is already exported: only b is reported updated
	updated, err := repo.MarkExported(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID}, updated)
}

func TestMarkExportedEmptySet(t *testing.T) {
	repo := refunds.NewRepository()
	updated, err := repo.MarkExported(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, updated)
}

func TestInsertCandidateConflict(t *testing.T) {
	repo := refunds.NewRepository()
	ctx := context.Background()

	seedCandidate(t, repo, "card-a", "10.00")

	dup := &models.RawCandidate{
		FirstName: "Second",
		LastName:  "Request",
		Account:   "BE68539007547034",
		Email:     "second@example.com",
		CardID:    "card-a",
	}
	err := repo.InsertCandidate(ctx, dup)
	require.ErrorIs(t, err, refunds.ErrConflict)

	// once the first request is exported a new one is accepted
	first, err := repo.ListUnexportedCandidates(ctx)
	require.NoError(t, err)
	_, err = repo.MarkExported(ctx, []int64{first[0].ID})
	require.NoError(t, err)
	require.NoError(t, repo.InsertCandidate(ctx, dup))
}

func TestCardBalance(t *testing.T) {
	repo := refunds.NewRepository()
	ctx := context.Background()

	_, err := repo.CardBalance(ctx, "unknown")
	require.True(t, errors.Is(err, refunds.ErrNotFound))

	require.NoError(t, repo.SetCardBalance(ctx, "card-a", decimal.RequireFromString("12.34")))
	balance, err := repo.CardBalance(ctx, "card-a")
	require.NoError(t, err)
	require.Equal(t, "12.34", balance.StringFixed(2))
}

func TestListUnexportedOrder(t *testing.T) {
	repo := refunds.NewRepository()
	ctx := context.Background()

	a := seedCandidate(t, repo, "card-a", "10.00")
	b := seedCandidate(t, repo, "card-b", "10.00")
	c := seedCandidate(t, repo, "card-c", "10.00")

	list, err := repo.ListUnexportedCandidates(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
}
