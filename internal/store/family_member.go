package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famquest/internal/model"
)

// FamilyMemberStore is the family roster. Members are deactivated rather
// than deleted because their ledger history references them.
type FamilyMemberStore struct {
	db DBTX
}

func NewFamilyMemberStore(db DBTX) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

const familyMemberCols = `id, family_id, name, color, avatar_emoji, pin IS NOT NULL, active, sort_order, created_at, updated_at`

func scanFamilyMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var active int
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Color, &m.AvatarEmoji, &m.HasPIN, &active, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Active = active != 0
	return &m, nil
}

func (s *FamilyMemberStore) Create(ctx context.Context, familyID int64, name, color, avatarEmoji string) (*model.FamilyMember, error) {
	var maxOrder int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), -1) FROM family_members WHERE family_id = ?", familyID,
	).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO family_members (family_id, name, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?, ?)",
		familyID, name, color, avatarEmoji, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// List returns the family's members in display order. Inactive members are
// included only when includeInactive is set.
func (s *FamilyMemberStore) List(ctx context.Context, familyID int64, includeInactive bool) ([]model.FamilyMember, error) {
	query := "SELECT " + familyMemberCols + " FROM family_members WHERE family_id = ?"
	if !includeInactive {
		query += " AND active = 1"
	}
	query += " ORDER BY sort_order, id"

	rows, err := s.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("query family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListActiveMemberIDs returns the ids of everyone currently in the family.
func (s *FamilyMemberStore) ListActiveMemberIDs(ctx context.Context, familyID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM family_members WHERE family_id = ? AND active = 1 ORDER BY sort_order, id",
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query active member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FamilyMemberStore) GetByID(ctx context.Context, id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+familyMemberCols+" FROM family_members WHERE id = ?", id)
	m, err := scanFamilyMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyMemberStore) Update(ctx context.Context, id int64, name, color, avatarEmoji string) (*model.FamilyMember, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE family_members SET name = ?, color = ?, avatar_emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, color, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Deactivate removes a member from the roster without touching their ledger.
func (s *FamilyMemberStore) Deactivate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE family_members SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate family member: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) ClearPIN(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM family_members WHERE id = ?", id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("family member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}
