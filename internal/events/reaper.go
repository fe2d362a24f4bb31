package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reaper deletes recurrence rules and base recurring events that no
// instance references any more. It must run after the instance writes of
// a mutation, inside the same transaction: running earlier would delete
// records the mutation is still pointing instances at.
type Reaper struct {
	logger *zap.Logger
}

// NewReaper creates a reaper.
func NewReaper(logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{logger: logger}
}

// Reap collects what a deletion left dangling. When no instance
// references the base event any more the whole series is torn down:
// every rule of the base, split-off siblings included, and then the base
// event itself. Otherwise only the targeted rule is checked and deleted
// if orphaned.
func (r *Reaper) Reap(ctx context.Context, tx Tx, ruleID, baseEventID uuid.UUID) error {
	baseRefs, err := tx.CountInstancesByBaseEvent(ctx, baseEventID)
	if err != nil {
		return fmt.Errorf("count base event referents: %w", err)
	}
	if baseRefs > 0 {
		return r.ReapRule(ctx, tx, ruleID)
	}

	// No instance of any rule survives; rules go first, base last.
	rules, err := tx.ListRulesByBaseEvent(ctx, baseEventID)
	if err != nil {
		return fmt.Errorf("list series rules: %w", err)
	}
	for _, rule := range rules {
		if err := tx.DeleteRule(ctx, rule.ID); err != nil {
			return fmt.Errorf("delete dangling recurrence rule: %w", err)
		}
		r.logger.Info("reaped recurrence rule", zap.String("recurrence_rule_id", rule.ID.String()))
	}
	if err := tx.DeleteEvent(ctx, baseEventID); err != nil {
		return fmt.Errorf("delete dangling base recurring event: %w", err)
	}
	r.logger.Info("reaped base recurring event", zap.String("base_event_id", baseEventID.String()))
	return nil
}

// ReapRule deletes the rule if no instance references it. The base event
// is left alone; series splits use this so a regeneration that produced
// an intentionally empty window keeps its base and new rule.
func (r *Reaper) ReapRule(ctx context.Context, tx Tx, ruleID uuid.UUID) error {
	ruleRefs, err := tx.CountInstancesByRule(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("count rule referents: %w", err)
	}
	if ruleRefs > 0 {
		return nil
	}
	if err := tx.DeleteRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete dangling recurrence rule: %w", err)
	}
	r.logger.Info("reaped recurrence rule", zap.String("recurrence_rule_id", ruleID.String()))
	return nil
}
