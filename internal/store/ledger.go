package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/famquest/internal/model"
)

// LedgerStore persists point ledger entries. It exposes no update or delete;
// the schema rejects both with triggers.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerCols = `id, member_id, delta, source, meta, created_at`

func scanLedgerEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var meta string

	if err := scanner.Scan(&e.ID, &e.MemberID, &e.Delta, &e.Source, &meta, &e.CreatedAt); err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &e, nil
}

// Append writes one entry. Affordability is the caller's concern.
func (s *LedgerStore) Append(ctx context.Context, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error) {
	if delta == 0 {
		return nil, &model.ValidationError{Field: "delta", Reason: "must be non-zero"}
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, &model.ValidationError{Field: "source", Reason: "is required"}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, &model.ValidationError{Field: "meta", Reason: err.Error()}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO point_ledger (member_id, delta, source, meta) VALUES (?, ?, ?, ?)`,
		memberID, delta, source, string(metaJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerCols+` FROM point_ledger WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// SumByMember returns the member's balance, 0 when they have no entries.
func (s *LedgerStore) SumByMember(ctx context.Context, memberID int64) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM point_ledger WHERE member_id = ?`,
		memberID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger for member %d: %w", memberID, err)
	}
	return sum, nil
}

// SumByMembers returns balances for all requested members in one query.
// Members without entries map to 0.
func (s *LedgerStore) SumByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error) {
	sums := make(map[int64]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return sums, nil
	}
	for _, id := range memberIDs {
		sums[id] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, SUM(delta) FROM point_ledger WHERE member_id IN (`+placeholders(len(memberIDs))+`) GROUP BY member_id`,
		int64Args(memberIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sum ledger by members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan ledger sum: %w", err)
		}
		sums[id] = sum
	}
	return sums, rows.Err()
}

// ListByMember returns the member's most recent entries, newest first.
// A limit <= 0 returns everything.
func (s *LedgerStore) ListByMember(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerCols + ` FROM point_ledger WHERE member_id = ? ORDER BY id DESC`
	args := []any{memberID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
