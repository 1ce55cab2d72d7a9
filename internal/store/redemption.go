package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famquest/internal/model"
)

// RedemptionStore persists redeemed reward records and their funding members.
type RedemptionStore struct {
	db  DBTX
	now func() time.Time
}

func NewRedemptionStore(db DBTX) *RedemptionStore {
	return &RedemptionStore{db: db, now: time.Now}
}

const redemptionCols = `id, family_id, reward_id, operation_id, title, description, cost, category, rarity, redeemed_at, expires_at, status, used_at`

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RedeemedReward, error) {
	var r model.RedeemedReward
	var rewardID sql.NullInt64
	var usedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.FamilyID, &rewardID, &r.OperationID, &r.Title, &r.Description,
		&r.Cost, &r.Category, &r.Rarity, &r.RedeemedAt, &r.ExpiresAt, &r.Status, &usedAt)
	if err != nil {
		return nil, err
	}

	if rewardID.Valid {
		r.RewardID = &rewardID.Int64
	}
	if usedAt.Valid {
		r.UsedAt = &usedAt.Time
	}
	return &r, nil
}

// Insert stores a new record with status active. RedeemedAt defaults to now
// and ExpiresAt to RedeemedAt plus model.RedemptionTTL.
func (s *RedemptionStore) Insert(ctx context.Context, rec model.RedeemedReward) (*model.RedeemedReward, error) {
	if len(rec.RedeemedByMembers) == 0 {
		return nil, &model.ValidationError{Field: "redeemed_by_members", Reason: "must not be empty"}
	}
	if rec.RedeemedAt.IsZero() {
		rec.RedeemedAt = s.now().UTC()
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.RedeemedAt.Add(model.RedemptionTTL)
	}

	var rewardID sql.NullInt64
	if rec.RewardID != nil {
		rewardID = sql.NullInt64{Int64: *rec.RewardID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO redeemed_rewards (family_id, reward_id, operation_id, title, description, cost, category, rarity, redeemed_at, expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FamilyID, rewardID, rec.OperationID, rec.Title, rec.Description, rec.Cost,
		string(rec.Category), string(rec.Rarity), rec.RedeemedAt, rec.ExpiresAt, string(model.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for i, memberID := range rec.RedeemedByMembers {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO redeemed_reward_members (redeemed_reward_id, member_id, position) VALUES (?, ?, ?)`,
			id, memberID, i,
		); err != nil {
			return nil, fmt.Errorf("insert redemption member %d: %w", memberID, err)
		}
	}

	return s.GetByID(ctx, id)
}

func (s *RedemptionStore) GetByID(ctx context.Context, id int64) (*model.RedeemedReward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redeemed_rewards WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}

	members, err := s.members(ctx, `redeemed_reward_id = ?`, id)
	if err != nil {
		return nil, err
	}
	r.RedeemedByMembers = members[id]
	return r, nil
}

// ListByFamily returns the family's redemptions, most recent first.
func (s *RedemptionStore) ListByFamily(ctx context.Context, familyID int64) ([]model.RedeemedReward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+redemptionCols+` FROM redeemed_rewards WHERE family_id = ? ORDER BY redeemed_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by family: %w", err)
	}
	defer rows.Close()

	var records []model.RedeemedReward
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemptions: %w", err)
	}
	rows.Close()

	members, err := s.members(ctx,
		`redeemed_reward_id IN (SELECT id FROM redeemed_rewards WHERE family_id = ?)`, familyID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].RedeemedByMembers = members[records[i].ID]
	}
	return records, nil
}

func (s *RedemptionStore) members(ctx context.Context, where string, arg any) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT redeemed_reward_id, member_id FROM redeemed_reward_members WHERE `+where+` ORDER BY redeemed_reward_id, position`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemption members: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var recID, memberID int64
		if err := rows.Scan(&recID, &memberID); err != nil {
			return nil, fmt.Errorf("scan redemption member: %w", err)
		}
		out[recID] = append(out[recID], memberID)
	}
	return out, rows.Err()
}

// MarkUsed flips an active record to used. It reports false when the stored
// status was no longer active.
func (s *RedemptionStore) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE redeemed_rewards SET status = ?, used_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusUsed), at.UTC(), id, string(model.StatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("mark redemption used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeriveStatus reports a record's effective status at now. An active record
// past its expiry reads as expired; the stored row is left untouched.
func DeriveStatus(rec model.RedeemedReward, now time.Time) model.RedemptionStatus {
	if rec.Status == model.StatusActive && now.After(rec.ExpiresAt) {
		return model.StatusExpired
	}
	return rec.Status
}
