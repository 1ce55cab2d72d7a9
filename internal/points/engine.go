package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/store"
	"github.com/dukerupert/famquest/internal/websocket"
)

// RecordStore reads and updates redemption records outside a redemption.
type RecordStore interface {
	GetByID(ctx context.Context, id int64) (*model.RedeemedReward, error)
	ListByFamily(ctx context.Context, familyID int64) ([]model.RedeemedReward, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error)
}

// Engine settles reward redemptions against the points ledger.
//
// Every redemption holds the family's lock for its whole read-decide-write
// sequence and runs that sequence as one unit of work, so two redemptions for
// the same family never price against the same balances.
type Engine struct {
	uow      UnitOfWork
	records  RecordStore
	notifier Notifier
	locks    *familyLocks
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewEngine(uow UnitOfWork, records RecordStore, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		uow:      uow,
		records:  records,
		notifier: notifier,
		locks:    newFamilyLocks(),
		tracer:   otel.Tracer("famquest/points"),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func validateReward(reward model.Reward) error {
	if reward.Cost <= 0 {
		return &model.ValidationError{Field: "cost", Reason: "must be positive"}
	}
	return nil
}

// RedeemIndividualReward charges every selected member the full reward cost.
// Either every member can afford it and all are charged, or nobody is.
func (e *Engine) RedeemIndividualReward(ctx context.Context, familyID int64, reward model.Reward, memberIDs []int64) (model.RedemptionResult, error) {
	ctx, span := e.tracer.Start(ctx, "points.redeem_individual", trace.WithAttributes(
		attribute.Int64("family.id", familyID),
		attribute.Int64("reward.id", reward.ID),
		attribute.Int("reward.cost", reward.Cost),
		attribute.Int("members", len(memberIDs)),
	))
	defer span.End()

	if err := validateReward(reward); err != nil {
		return e.fail(ctx, span, err)
	}
	if len(memberIDs) == 0 {
		return e.fail(ctx, span, &model.ValidationError{Field: "member_ids", Reason: "at least one member must be selected"})
	}
	seen := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return e.fail(ctx, span, &model.ValidationError{Field: "member_ids", Reason: fmt.Sprintf("member %d selected twice", id)})
		}
		seen[id] = true
	}

	unlock, err := e.locks.lock(ctx, familyID)
	if err != nil {
		return e.fail(ctx, span, err)
	}
	defer unlock()

	opID := e.newID()
	var plan []model.Deduction
	var rec *model.RedeemedReward

	err = e.uow.Do(ctx, func(s Store) error {
		plan, rec = nil, nil

		roster, err := s.ListActiveMemberIDs(ctx, familyID)
		if err != nil {
			return &model.PersistenceError{Op: "list family members", Err: err}
		}
		inFamily := make(map[int64]bool, len(roster))
		for _, id := range roster {
			inFamily[id] = true
		}
		for _, id := range memberIDs {
			if !inFamily[id] {
				return &model.ValidationError{Field: "member_ids", Reason: fmt.Sprintf("member %d is not an active member of family %d", id, familyID)}
			}
		}

		balances, err := s.SumByMembers(ctx, memberIDs)
		if err != nil {
			return &model.PersistenceError{Op: "read balances", Err: err}
		}

		var short []model.Shortfall
		for _, id := range memberIDs {
			if balances[id] < reward.Cost {
				short = append(short, model.Shortfall{MemberID: id, Available: balances[id], Required: reward.Cost})
			}
		}
		if len(short) > 0 {
			return &model.InsufficientPointsError{Required: reward.Cost, Short: short}
		}

		plan = make([]model.Deduction, len(memberIDs))
		for i, id := range memberIDs {
			plan[i] = model.Deduction{MemberID: id, Amount: reward.Cost}
		}

		rec, err = e.apply(ctx, s, opID, familyID, reward, plan, memberIDs)
		return err
	})
	if err != nil {
		return e.fail(ctx, span, err)
	}

	e.logger.InfoContext(ctx, "individual reward redeemed",
		"family_id", familyID, "reward_id", reward.ID, "members", len(memberIDs), "operation_id", opID)
	e.notifyRedeemed(familyID, rec)

	return model.RedemptionResult{
		Success:          true,
		Message:          fmt.Sprintf("Redeemed %q for %d member(s) at %d points each", reward.Title, len(memberIDs), reward.Cost),
		Deductions:       plan,
		RedeemedRewardID: &rec.ID,
	}, nil
}

// RedeemFamilyReward pays one shared bill out of the pooled balances of
// everyone currently in the family, split with PlanFamilyDeduction.
func (e *Engine) RedeemFamilyReward(ctx context.Context, familyID int64, reward model.Reward) (model.RedemptionResult, error) {
	ctx, span := e.tracer.Start(ctx, "points.redeem_family", trace.WithAttributes(
		attribute.Int64("family.id", familyID),
		attribute.Int64("reward.id", reward.ID),
		attribute.Int("reward.cost", reward.Cost),
	))
	defer span.End()

	if err := validateReward(reward); err != nil {
		return e.fail(ctx, span, err)
	}

	unlock, err := e.locks.lock(ctx, familyID)
	if err != nil {
		return e.fail(ctx, span, err)
	}
	defer unlock()

	opID := e.newID()
	var plan []model.Deduction
	var rec *model.RedeemedReward

	err = e.uow.Do(ctx, func(s Store) error {
		plan, rec = nil, nil

		roster, err := s.ListActiveMemberIDs(ctx, familyID)
		if err != nil {
			return &model.PersistenceError{Op: "list family members", Err: err}
		}
		balances, err := s.SumByMembers(ctx, roster)
		if err != nil {
			return &model.PersistenceError{Op: "read balances", Err: err}
		}

		total := 0
		for _, id := range roster {
			total += balances[id]
		}
		if total < reward.Cost {
			return &model.InsufficientPointsError{Available: total, Required: reward.Cost}
		}

		plan, err = PlanFamilyDeduction(reward.Cost, balances)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("plan.lines", len(plan)))

		rec, err = e.apply(ctx, s, opID, familyID, reward, plan, contributors(plan))
		return err
	})
	if err != nil {
		return e.fail(ctx, span, err)
	}

	e.logger.InfoContext(ctx, "family reward redeemed",
		"family_id", familyID, "reward_id", reward.ID, "cost", reward.Cost,
		"contributors", len(rec.RedeemedByMembers), "operation_id", opID)
	e.notifyRedeemed(familyID, rec)

	return model.RedemptionResult{
		Success:          true,
		Message:          fmt.Sprintf("Redeemed %q for %d family points", reward.Title, reward.Cost),
		Deductions:       plan,
		RedeemedRewardID: &rec.ID,
	}, nil
}

// Debit appends a negative adjustment for one member under the family lock.
// It is refused when it would take the member's balance below zero.
func (e *Engine) Debit(ctx context.Context, familyID, memberID int64, delta int, source string, meta map[string]any) (*model.LedgerEntry, error) {
	if delta >= 0 {
		return nil, &model.ValidationError{Field: "delta", Reason: "debit must be negative"}
	}

	unlock, err := e.locks.lock(ctx, familyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entry *model.LedgerEntry
	err = e.uow.Do(ctx, func(s Store) error {
		entry = nil

		roster, err := s.ListActiveMemberIDs(ctx, familyID)
		if err != nil {
			return &model.PersistenceError{Op: "list family members", Err: err}
		}
		if !slices.Contains(roster, memberID) {
			return &model.NotFoundError{Entity: "family member", ID: memberID}
		}

		balances, err := s.SumByMembers(ctx, []int64{memberID})
		if err != nil {
			return &model.PersistenceError{Op: "read balances", Err: err}
		}
		if balance := balances[memberID]; balance+delta < 0 {
			return &model.InsufficientPointsError{
				Required: -delta,
				Short:    []model.Shortfall{{MemberID: memberID, Available: balance, Required: -delta}},
			}
		}

		entry, err = s.Append(ctx, memberID, delta, source, meta)
		if err != nil {
			if model.IsClientError(err) {
				return err
			}
			return &model.PersistenceError{Op: "append ledger entry", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// apply writes every planned deduction and then the redemption record.
func (e *Engine) apply(ctx context.Context, s Store, opID string, familyID int64, reward model.Reward, plan []model.Deduction, members []int64) (*model.RedeemedReward, error) {
	applied := make([]model.Deduction, 0, len(plan))
	for i, d := range plan {
		meta := map[string]any{
			"operation_id": opID,
			"family_id":    familyID,
			"reward_id":    reward.ID,
			"reward_title": reward.Title,
			"line":         i,
		}
		if _, err := s.Append(ctx, d.MemberID, -d.Amount, model.SourceRewardRedemption, meta); err != nil {
			return nil, e.abort(ctx, s, opID, applied, &model.PersistenceError{Op: "append deduction", Err: err})
		}
		applied = append(applied, d)
	}

	var rewardID *int64
	if reward.ID != 0 {
		id := reward.ID
		rewardID = &id
	}
	rec, err := s.InsertRedemption(ctx, model.RedeemedReward{
		FamilyID:          familyID,
		RewardID:          rewardID,
		OperationID:       opID,
		Title:             reward.Title,
		Description:       reward.Description,
		Cost:              reward.Cost,
		Category:          reward.Category,
		Rarity:            reward.Rarity,
		RedeemedByMembers: members,
		RedeemedAt:        e.now().UTC(),
	})
	if err != nil {
		return nil, e.abort(ctx, s, opID, applied, &model.PersistenceError{Op: "insert redemption record", Err: err})
	}
	return rec, nil
}

// abort undoes applied deductions after a failed write. Atomic units of work
// roll back on their own; otherwise each applied line is reversed with an
// opposite entry.
func (e *Engine) abort(ctx context.Context, s Store, opID string, applied []model.Deduction, cause error) error {
	if e.uow.Atomic() || len(applied) == 0 {
		return cause
	}

	// Reversal must run even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	var unreversed []model.Deduction
	var firstErr error
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		meta := map[string]any{"operation_id": opID, "reverses_line": i}
		if _, err := s.Append(ctx, d.MemberID, d.Amount, model.SourceRedemptionReversal, meta); err != nil {
			unreversed = append(unreversed, d)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		e.logger.ErrorContext(ctx, "redemption compensation incomplete",
			"operation_id", opID, "unreversed", len(unreversed), "error", firstErr)
		return &model.CompensationError{OperationID: opID, Unreversed: unreversed, Cause: cause, Err: firstErr}
	}

	e.logger.WarnContext(ctx, "redemption compensated", "operation_id", opID, "reversed", len(applied), "cause", cause)
	return cause
}

func (e *Engine) fail(ctx context.Context, span trace.Span, err error) (model.RedemptionResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if model.IsClientError(err) && !errors.Is(err, model.ErrPersistence) {
		e.logger.InfoContext(ctx, "redemption refused", "reason", err)
	} else {
		e.logger.ErrorContext(ctx, "redemption failed", "error", err)
	}
	return model.RedemptionResult{Success: false, Message: FailureMessage(err)}, err
}

// FailureMessage turns a redemption error into text a family member can act on.
func FailureMessage(err error) string {
	var compErr *model.CompensationError
	var insufficient *model.InsufficientPointsError
	var validation *model.ValidationError
	switch {
	case errors.As(err, &compErr):
		return "The redemption failed and could not be fully undone. A parent should review the points history."
	case errors.Is(err, model.ErrPersistence):
		return "The redemption could not be saved and no points were spent. Please try again."
	case errors.As(err, &insufficient):
		return insufficient.Error()
	case errors.Is(err, model.ErrDistribution):
		return "We couldn't split the cost across the family's points. Please try again."
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The redemption was cancelled before it finished. No points were spent."
	}
	return "The redemption could not be completed: " + err.Error()
}

func (e *Engine) notifyRedeemed(familyID int64, rec *model.RedeemedReward) {
	if e.notifier == nil || rec == nil {
		return
	}
	e.notifier.Broadcast(websocket.NewMessage(familyID, "ledger", "changed", 0, map[string]any{
		"operation_id": rec.OperationID,
	}))
	e.notifier.Broadcast(websocket.NewMessage(familyID, "redemption", "created", rec.ID, nil))
}

// ListRedemptionHistory returns the family's redemptions, newest first, with
// each status derived at read time.
func (e *Engine) ListRedemptionHistory(ctx context.Context, familyID int64) ([]model.RedeemedReward, error) {
	records, err := e.records.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list redemptions", Err: err}
	}
	now := e.now()
	for i := range records {
		records[i].Status = store.DeriveStatus(records[i], now)
	}
	return records, nil
}

// MarkRedemptionUsed moves an active redemption to used. Expired or already
// used redemptions are refused.
func (e *Engine) MarkRedemptionUsed(ctx context.Context, familyID, redemptionID int64) (*model.RedeemedReward, error) {
	rec, err := e.records.GetByID(ctx, redemptionID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "get redemption", Err: err}
	}
	if rec == nil || rec.FamilyID != familyID {
		return nil, &model.NotFoundError{Entity: "redemption", ID: redemptionID}
	}

	now := e.now()
	if status := store.DeriveStatus(*rec, now); status != model.StatusActive {
		return nil, &model.ValidationError{Field: "status", Reason: fmt.Sprintf("redemption is %s", status)}
	}

	ok, err := e.records.MarkUsed(ctx, redemptionID, now)
	if err != nil {
		return nil, &model.PersistenceError{Op: "mark redemption used", Err: err}
	}
	if !ok {
		return nil, &model.ValidationError{Field: "status", Reason: "redemption is no longer active"}
	}

	updated, err := e.records.GetByID(ctx, redemptionID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "get redemption", Err: err}
	}
	if e.notifier != nil {
		e.notifier.Broadcast(websocket.NewMessage(familyID, "redemption", "used", redemptionID, nil))
	}
	return updated, nil
}
