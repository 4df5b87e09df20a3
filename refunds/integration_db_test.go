package refunds_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/refunds/models"
	"github.com/shopspring/decimal"
	_ "github.com/lib/pq"
)

// TestExportFlagRoundTrip verifies the export flag flips exactly once in
// the DB backend. Skips unless DB_DSN is provided and REPO_BACKEND=pg.
func TestExportFlagRoundTrip(t *testing.T) {
	if os.Getenv("REPO_BACKEND") != "pg" {
		t.Skip("REPO_BACKEND != pg; skipping DB integration test")
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping DB integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	ctx := context.Background()
	repo := refunds.NewPGRepository(db)

	c := &models.RawCandidate{
		FirstName: "Jean",
		LastName:  "Dupont",
		Account:   "BE68539007547034",
		Email:     "jean@example.com",
		CardID:    "it-card-1",
	}
	if err := repo.InsertCandidate(ctx, c); err != nil {
		t.Fatalf("insert candidate: %v", err)
	}
	defer db.Exec(`DELETE FROM refunds.candidates WHERE id=$1`, c.ID)

	if err := repo.SetCardBalance(ctx, c.CardID, decimal.RequireFromString("25.00")); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	defer db.Exec(`DELETE FROM refunds.card_balances WHERE card_id=$1`, c.CardID)

	updated, err := repo.MarkExported(ctx, []int64{c.ID})
	if err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	if len(updated) != 1 || updated[0] != c.ID {
		t.Fatalf("mark exported updated %v, want [%d]", updated, c.ID)
	}

	// second call must be a no-op
	updated, err = repo.MarkExported(ctx, []int64{c.ID})
	if err != nil {
		t.Fatalf("mark exported again: %v", err)
	}
	if len(updated) != 0 {
		t.Fatalf("second mark updated %v, want none", updated)
	}

	var exported bool
	if err := db.QueryRow(`SELECT exported FROM refunds.candidates WHERE id=$1`, c.ID).Scan(&exported); err != nil {
		t.Fatalf("scan exported: %v", err)
	}
	if !exported {
		t.Fatalf("candidate %d not exported in DB", c.ID)
	}
}
