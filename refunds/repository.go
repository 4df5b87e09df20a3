package refunds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")
)

// Repository bundles the three stores the pipeline consumes: the
// candidate source, the read-only card-balance ledger, and the export
// state store. It runs either against Postgres or fully in memory (tests
// only).
//
// Expected schema:
//
//	refunds.candidates(id bigserial primary key, created_at timestamptz,
//	    first_name text, last_name text, account text, email text,
//	    card_id text, exported boolean default false, exported_at timestamptz,
//	    unique (card_id) where not exported)
//	refunds.card_balances(card_id text primary key, balance numeric(12,2))
type Repository struct {
	mu         sync.RWMutex
	candidates []*models.RawCandidate
	balances   map[string]decimal.Decimal
	nextID     int64
	// balanceErr, when set, fails every ledger lookup. Tests use it to
	// simulate a store outage on the memory backend.
	balanceErr error

	db *sql.DB
}

// NewRepository constructs the in-memory repository used by tests.
func NewRepository() *Repository {
	return &Repository{
		balances: make(map[string]decimal.Decimal),
		nextID:   1,
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListUnexportedCandidates returns every candidate whose export flag is
// still false, in stable id order.
func (r *Repository) ListUnexportedCandidates(ctx context.Context) ([]models.RawCandidate, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []models.RawCandidate
		for _, c := range r.candidates {
			if !c.Exported {
				out = append(out, *c)
			}
		}
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, created_at, first_name, last_name, account, email, card_id, exported
          FROM refunds.candidates
         WHERE NOT exported
         ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RawCandidate
	for rows.Next() {
		var c models.RawCandidate
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.FirstName, &c.LastName, &c.Account, &c.Email, &c.CardID, &c.Exported); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CardBalance looks up the current authoritative balance for a card.
// Returns ErrNotFound when the ledger has no record of the card.
func (r *Repository) CardBalance(ctx context.Context, cardID string) (decimal.Decimal, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.balanceErr != nil {
			return decimal.Zero, r.balanceErr
		}
		balance, ok := r.balances[cardID]
		if !ok {
			return decimal.Zero, ErrNotFound
		}
		return balance, nil
	}

	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM refunds.card_balances WHERE card_id=$1`, cardID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// InsertCandidate records a new reimbursement request. A second pending
// request for the same card is a conflict.
func (r *Repository) InsertCandidate(ctx context.Context, c *models.RawCandidate) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, existing := range r.candidates {
			if existing.CardID == c.CardID && !existing.Exported {
				return fmt.Errorf("pending candidate for card %s: %w", c.CardID, ErrConflict)
			}
		}
		c.ID = r.nextID
		r.nextID++
		r.candidates = append(r.candidates, c)
		return nil
	}

	err := r.db.QueryRowContext(ctx, `
        INSERT INTO refunds.candidates(created_at, first_name, last_name, account, email, card_id)
        VALUES (now(), $1, $2, $3, $4, $5)
        RETURNING id
    `, c.FirstName, c.LastName, c.Account, c.Email, c.CardID).Scan(&c.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// SetCardBalance upserts a ledger snapshot entry. Used when loading the
// post-edition balance snapshot.
func (r *Repository) SetCardBalance(ctx context.Context, cardID string, balance decimal.Decimal) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.balances[cardID] = balance
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO refunds.card_balances(card_id, balance)
        VALUES ($1, $2)
        ON CONFLICT (card_id) DO UPDATE SET balance = excluded.balance
    `, cardID, balance)
	return err
}

// MarkExported flips the export flag for the given candidate ids and
// returns the ids actually updated. Already-exported candidates are left
// untouched, so a repeated call with the same set is a no-op rather than
// an error.
func (r *Repository) MarkExported(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		want := make(map[int64]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		var updated []int64
		for _, c := range r.candidates {
			if want[c.ID] && !c.Exported {
				c.Exported = true
				updated = append(updated, c.ID)
			}
		}
		return updated, nil
	}

	rows, err := r.db.QueryContext(ctx, `
        UPDATE refunds.candidates
           SET exported = true, exported_at = now()
         WHERE id = ANY($1) AND NOT exported
        RETURNING id
    `, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// Ping returns store readiness.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
