package model

import "time"

type RewardCategory string

const (
	CategoryFamily     RewardCategory = "Family"
	CategoryIndividual RewardCategory = "Individual"
	CategorySpecial    RewardCategory = "Special"
)

func (c RewardCategory) Valid() bool {
	switch c {
	case CategoryFamily, CategoryIndividual, CategorySpecial:
		return true
	}
	return false
}

type RewardRarity string

const (
	RarityCommon    RewardRarity = "common"
	RarityRare      RewardRarity = "rare"
	RarityEpic      RewardRarity = "epic"
	RarityLegendary RewardRarity = "legendary"
)

func (r RewardRarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

type Reward struct {
	ID          int64          `json:"id"`
	FamilyID    int64          `json:"family_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Cost        int            `json:"cost"`
	Category    RewardCategory `json:"category"`
	Rarity      RewardRarity   `json:"rarity"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
