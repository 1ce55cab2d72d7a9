package model

import "time"

// Ledger entry sources.
const (
	SourceChallengeCompletion = "challenge_completion"
	SourceStepBonus           = "step_bonus"
	SourceManualAdjustment    = "manual_adjustment"
	SourceRewardRedemption    = "reward_redemption"
	SourceRedemptionReversal  = "redemption_reversal"
)

// LedgerEntry is one signed point movement for one member. Entries are never
// updated or deleted; a member's balance is the sum of their deltas.
type LedgerEntry struct {
	ID        int64          `json:"id"`
	MemberID  int64          `json:"member_id"`
	Delta     int            `json:"delta"`
	Source    string         `json:"source"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

type MemberBalance struct {
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name,omitempty"`
	Points     int    `json:"points"`
}
