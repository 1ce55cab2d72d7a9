package model

import "time"

// RedemptionTTL is how long a redeemed reward stays usable.
const RedemptionTTL = 7 * 24 * time.Hour

type RedemptionStatus string

const (
	StatusActive  RedemptionStatus = "active"
	StatusUsed    RedemptionStatus = "used"
	StatusExpired RedemptionStatus = "expired"
)

// RedeemedReward records a completed redemption. The reward fields are a
// snapshot taken at redemption time so later catalog edits leave history intact.
type RedeemedReward struct {
	ID                int64            `json:"id"`
	FamilyID          int64            `json:"family_id"`
	RewardID          *int64           `json:"reward_id"`
	OperationID       string           `json:"operation_id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Cost              int              `json:"cost"`
	Category          RewardCategory   `json:"category"`
	Rarity            RewardRarity     `json:"rarity"`
	RedeemedByMembers []int64          `json:"redeemed_by_members"`
	RedeemedAt        time.Time        `json:"redeemed_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	Status            RedemptionStatus `json:"status"`
	UsedAt            *time.Time       `json:"used_at,omitempty"`
}

// Deduction is one line of a redemption's deduction plan.
type Deduction struct {
	MemberID int64 `json:"member_id"`
	Amount   int   `json:"amount"`
}

type RedemptionResult struct {
	Success          bool        `json:"success"`
	Message          string      `json:"message"`
	Deductions       []Deduction `json:"deductions,omitempty"`
	RedeemedRewardID *int64      `json:"redeemed_reward_id,omitempty"`
}
