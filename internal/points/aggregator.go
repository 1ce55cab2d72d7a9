package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/websocket"
)

// Ledger is the read and append surface of the points ledger.
type Ledger interface {
	Append(ctx context.Context, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error)
	SumByMember(ctx context.Context, memberID int64) (int, error)
	SumByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error)
	ListByMember(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error)
}

// Roster answers who currently belongs to a family.
type Roster interface {
	ListActiveMemberIDs(ctx context.Context, familyID int64) ([]int64, error)
	List(ctx context.Context, familyID int64, includeInactive bool) ([]model.FamilyMember, error)
	GetByID(ctx context.Context, id int64) (*model.FamilyMember, error)
}

// Debiter applies negative adjustments with the same guard as redemptions.
type Debiter interface {
	Debit(ctx context.Context, familyID, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error)
}

// Aggregator derives balances from the ledger and records earned points.
// It caches nothing; every call reads the ledger.
type Aggregator struct {
	ledger   Ledger
	roster   Roster
	debits   Debiter
	notifier Notifier
	logger   *slog.Logger
}

func NewAggregator(ledger Ledger, roster Roster, debits Debiter, notifier Notifier, logger *slog.Logger) *Aggregator {
	return &Aggregator{ledger: ledger, roster: roster, debits: debits, notifier: notifier, logger: logger}
}

func (a *Aggregator) GetMemberPoints(ctx context.Context, memberID int64) (int, error) {
	sum, err := a.ledger.SumByMember(ctx, memberID)
	if err != nil {
		return 0, &model.PersistenceError{Op: "sum member points", Err: err}
	}
	return sum, nil
}

// GetFamilyPoints sums the balances of everyone in the family right now.
func (a *Aggregator) GetFamilyPoints(ctx context.Context, familyID int64) (int, error) {
	ids, err := a.roster.ListActiveMemberIDs(ctx, familyID)
	if err != nil {
		return 0, &model.PersistenceError{Op: "list family members", Err: err}
	}
	sums, err := a.ledger.SumByMembers(ctx, ids)
	if err != nil {
		return 0, &model.PersistenceError{Op: "sum family points", Err: err}
	}
	total := 0
	for _, id := range ids {
		total += sums[id]
	}
	return total, nil
}

// MemberBalances returns every active member's balance, highest first.
func (a *Aggregator) MemberBalances(ctx context.Context, familyID int64) ([]model.MemberBalance, error) {
	members, err := a.roster.List(ctx, familyID, false)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list family members", Err: err}
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	sums, err := a.ledger.SumByMembers(ctx, ids)
	if err != nil {
		return nil, &model.PersistenceError{Op: "sum family points", Err: err}
	}

	balances := make([]model.MemberBalance, len(members))
	for i, m := range members {
		balances[i] = model.MemberBalance{MemberID: m.ID, MemberName: m.Name, Points: sums[m.ID]}
	}
	sort.SliceStable(balances, func(i, j int) bool {
		return balances[i].Points > balances[j].Points
	})
	return balances, nil
}

// History returns a member's latest ledger entries.
func (a *Aggregator) History(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error) {
	entries, err := a.ledger.ListByMember(ctx, memberID, limit)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list ledger entries", Err: err}
	}
	return entries, nil
}

// Award records points earned or adjusted for a family member. Redemption
// sources are reserved for the redemption engine. Negative adjustments go
// through the Debiter and never take a balance below zero.
func (a *Aggregator) Award(ctx context.Context, familyID, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error) {
	source = strings.TrimSpace(source)
	switch source {
	case model.SourceRewardRedemption, model.SourceRedemptionReversal:
		return nil, &model.ValidationError{Field: "source", Reason: fmt.Sprintf("%q is reserved for redemptions", source)}
	}

	member, err := a.roster.GetByID(ctx, memberID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "get family member", Err: err}
	}
	if member == nil || member.FamilyID != familyID {
		return nil, &model.NotFoundError{Entity: "family member", ID: memberID}
	}
	if !member.Active {
		return nil, &model.ValidationError{Field: "member_id", Reason: "member is no longer in the family"}
	}

	var entry *model.LedgerEntry
	if delta < 0 {
		entry, err = a.debits.Debit(ctx, familyID, memberID, delta, source, meta)
	} else {
		entry, err = a.ledger.Append(ctx, memberID, delta, source, meta)
	}
	if err != nil {
		if model.IsClientError(err) || errors.Is(err, model.ErrPersistence) {
			return nil, err
		}
		return nil, &model.PersistenceError{Op: "append ledger entry", Err: err}
	}

	a.logger.InfoContext(ctx, "points recorded", "family_id", familyID, "member_id", memberID, "delta", delta, "source", source)
	if a.notifier != nil {
		a.notifier.Broadcast(websocket.NewMessage(familyID, "ledger", "changed", entry.ID, map[string]any{
			"member_id": memberID,
			"delta":     delta,
		}))
	}
	return entry, nil
}
