package points

import (
	"sort"

	"github.com/dukerupert/famquest/internal/model"
)

type payer struct {
	memberID int64
	balance  int
}

// PlanFamilyDeduction splits cost across the given balances with the family
// cascade:
//
//   - members holding points are active payers, sorted by balance descending
//     (ties by member id);
//   - each round charges every active payer an equal share of what is left,
//     ceil(remaining/payers), walking from the poorest payer to the richest;
//   - a payer is charged min(balance, share, remaining), so nobody pays more
//     than they hold and the plan never over-collects;
//   - payers who reach zero leave the pool, and their shortfall is picked up
//     by richer payers later in the same round or in the next one.
//
// The returned plan may hold several lines per member, one per round they
// paid in. Its amounts always sum to exactly cost.
func PlanFamilyDeduction(cost int, balances map[int64]int) ([]model.Deduction, error) {
	if cost <= 0 {
		return nil, &model.ValidationError{Field: "cost", Reason: "must be positive"}
	}

	active := make([]payer, 0, len(balances))
	total := 0
	for id, b := range balances {
		if b > 0 {
			active = append(active, payer{memberID: id, balance: b})
			total += b
		}
	}
	if total < cost {
		return nil, &model.InsufficientPointsError{Available: total, Required: cost}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].balance != active[j].balance {
			return active[i].balance > active[j].balance
		}
		return active[i].memberID < active[j].memberID
	})

	remaining := cost
	var plan []model.Deduction
	for remaining > 0 && len(active) > 0 {
		share := (remaining + len(active) - 1) / len(active)
		before := remaining

		for i := len(active) - 1; i >= 0 && remaining > 0; i-- {
			amount := min(active[i].balance, share, remaining)
			if amount <= 0 {
				continue
			}
			active[i].balance -= amount
			remaining -= amount
			plan = append(plan, model.Deduction{MemberID: active[i].memberID, Amount: amount})
		}

		kept := active[:0]
		for _, p := range active {
			if p.balance > 0 {
				kept = append(kept, p)
			}
		}
		active = kept

		// A round that collects nothing will never collect anything.
		if remaining == before {
			break
		}
	}

	if remaining > 0 {
		return nil, &model.DistributionError{Cost: cost, Remaining: remaining}
	}
	return plan, nil
}

// contributors returns each member in the plan once, in first-payment order.
func contributors(plan []model.Deduction) []int64 {
	seen := make(map[int64]bool, len(plan))
	var ids []int64
	for _, d := range plan {
		if d.Amount == 0 || seen[d.MemberID] {
			continue
		}
		seen[d.MemberID] = true
		ids = append(ids, d.MemberID)
	}
	return ids
}
