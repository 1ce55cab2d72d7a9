package points

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dukerupert/famquest/internal/model"
)

// planRounds splits a plan into cascade rounds. Each active payer is charged
// at most once per round, so a round ends when a member repeats.
func planRounds(plan []model.Deduction) [][]model.Deduction {
	var rounds [][]model.Deduction
	var cur []model.Deduction
	seen := make(map[int64]bool)
	for _, d := range plan {
		if seen[d.MemberID] {
			rounds = append(rounds, cur)
			cur, seen = nil, make(map[int64]bool)
		}
		seen[d.MemberID] = true
		cur = append(cur, d)
	}
	if len(cur) > 0 {
		rounds = append(rounds, cur)
	}
	return rounds
}

func totals(plan []model.Deduction) map[int64]int {
	out := make(map[int64]int)
	for _, d := range plan {
		out[d.MemberID] += d.Amount
	}
	return out
}

func TestPlanFamilyDeduction_SplitsAcrossPayers(t *testing.T) {
	// A=1 holds 100, B=2 holds 50, C=3 holds nothing.
	plan, err := PlanFamilyDeduction(90, map[int64]int{1: 100, 2: 50, 3: 0})
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 45, 2: 45}, totals(plan))
	require.Len(t, plan, 2)
	assert.Equal(t, int64(2), plan[0].MemberID, "poorer payer is charged first")
}

func TestPlanFamilyDeduction_InsufficientPool(t *testing.T) {
	plan, err := PlanFamilyDeduction(50, map[int64]int{1: 20, 2: 10})
	require.Error(t, err)
	assert.Nil(t, plan)

	var insufficient *model.InsufficientPointsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Available)
	assert.Equal(t, 50, insufficient.Required)
}

func TestPlanFamilyDeduction_ShortfallMovesToRicherPayers(t *testing.T) {
	// share is 34; C only has 5, so A and B cover the rest.
	plan, err := PlanFamilyDeduction(100, map[int64]int{1: 200, 2: 60, 3: 5})
	require.NoError(t, err)

	got := totals(plan)
	assert.Equal(t, 5, got[3])
	assert.Equal(t, 100, got[1]+got[2]+got[3])
	assert.LessOrEqual(t, got[2], 60)
}

func TestPlanFamilyDeduction_ExactPool(t *testing.T) {
	plan, err := PlanFamilyDeduction(30, map[int64]int{1: 20, 2: 10})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 20, 2: 10}, totals(plan))
}

func TestPlanFamilyDeduction_IgnoresNegativeBalances(t *testing.T) {
	plan, err := PlanFamilyDeduction(10, map[int64]int{1: -50, 2: 10})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{2: 10}, totals(plan))
}

func TestPlanFamilyDeduction_RejectsNonPositiveCost(t *testing.T) {
	for _, cost := range []int{0, -5} {
		_, err := PlanFamilyDeduction(cost, map[int64]int{1: 100})
		assert.ErrorIs(t, err, model.ErrValidation)
	}
}

func TestPlanFamilyDeduction_TieBreakIsStable(t *testing.T) {
	balances := map[int64]int{7: 40, 3: 40, 5: 40}
	first, err := PlanFamilyDeduction(31, balances)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := PlanFamilyDeduction(31, balances)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestContributors(t *testing.T) {
	plan := []model.Deduction{{MemberID: 2, Amount: 10}, {MemberID: 1, Amount: 5}, {MemberID: 2, Amount: 3}}
	assert.Equal(t, []int64{2, 1}, contributors(plan))
}

func TestPlanFamilyDeduction_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "members")
		balances := make(map[int64]int, n)
		total := 0
		for i := 0; i < n; i++ {
			b := rapid.IntRange(-20, 500).Draw(t, "balance")
			balances[int64(i+1)] = b
			if b > 0 {
				total += b
			}
		}
		cost := rapid.IntRange(1, 1000).Draw(t, "cost")

		plan, err := PlanFamilyDeduction(cost, balances)
		if total < cost {
			if !errors.Is(err, model.ErrInsufficientPoints) {
				t.Fatalf("cost %d over pool %d: err = %v", cost, total, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("cost %d within pool %d: %v", cost, total, err)
		}

		sum := 0
		for _, d := range plan {
			if d.Amount <= 0 {
				t.Fatalf("non-positive line %+v", d)
			}
			sum += d.Amount
		}
		if sum != cost {
			t.Fatalf("plan sums to %d, want %d", sum, cost)
		}

		left := make(map[int64]int, len(balances))
		for id, b := range balances {
			left[id] = b
		}
		for _, d := range plan {
			if left[d.MemberID] <= 0 {
				t.Fatalf("member %d charged %d after reaching zero", d.MemberID, d.Amount)
			}
			left[d.MemberID] -= d.Amount
		}

		// Replay the rounds: each line is capped by the round's equal share,
		// payers go poorest first, and a richer payer never pays less than
		// a poorer one unless the bill ran out on them.
		held := make(map[int64]int, len(balances))
		for id, b := range balances {
			held[id] = b
		}
		remaining := cost
		rounds := planRounds(plan)
		for r, round := range rounds {
			active := 0
			for _, b := range held {
				if b > 0 {
					active++
				}
			}
			share := (remaining + active - 1) / active
			last := r == len(rounds)-1
			if !last && len(round) != active {
				t.Fatalf("round %d charged %d of %d active payers", r, len(round), active)
			}
			for i, d := range round {
				if d.Amount > share {
					t.Fatalf("round %d: member %d paid %d over share %d", r, d.MemberID, d.Amount, share)
				}
				if i > 0 {
					prev := round[i-1]
					if held[d.MemberID] < held[prev.MemberID] {
						t.Fatalf("round %d: member %d (%d) charged after poorer member %d (%d)",
							r, d.MemberID, held[d.MemberID], prev.MemberID, held[prev.MemberID])
					}
					finalLine := last && i == len(round)-1
					if !finalLine && d.Amount < prev.Amount {
						t.Fatalf("round %d: richer member %d paid %d, less than poorer member %d paid %d",
							r, d.MemberID, d.Amount, prev.MemberID, prev.Amount)
					}
				}
			}
			for _, d := range round {
				held[d.MemberID] -= d.Amount
				remaining -= d.Amount
			}
		}
		if remaining != 0 {
			t.Fatalf("replay left %d unpaid", remaining)
		}

		for id, paid := range totals(plan) {
			if balances[id] <= 0 {
				t.Fatalf("member %d with balance %d was charged %d", id, balances[id], paid)
			}
			if paid > balances[id] {
				t.Fatalf("member %d charged %d over balance %d", id, paid, balances[id])
			}
		}
	})
}
