package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
)

// Mutator applies scoped edits and deletions to recurring series. Edits
// that change the recurrence rule or the instance dates split the series:
// the targeted tail is deleted and regenerated under a fresh rule, and the
// reaper then collects whatever the old rule left behind.
type Mutator struct {
	store     Store
	generator *Generator
	reaper    *Reaper
	expander  *recurrence.Expander
	logger    *zap.Logger
}

// NewMutator creates a series mutator.
func NewMutator(store Store, generator *Generator, reaper *Reaper, expander *recurrence.Expander, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{store: store, generator: generator, reaper: reaper, expander: expander, logger: logger}
}

// Update applies the edit to the event at the requested scope and returns
// the updated representative event: the targeted instance when it
// survives, otherwise the first regenerated instance, otherwise the base
// event of the series. Missing events, rules or base events surface as
// ErrNotFound. A nil rec leaves the recurrence pattern alone; a non-nil
// rec that differs from the current rule forces a split even when no
// other field changed.
func (m *Mutator) Update(ctx context.Context, eventID uuid.UUID, edit EventEdit, rec *recurrence.Input, scope Scope, actingUserID uuid.UUID) (*models.Event, error) {
	if !ValidScope(scope) {
		return nil, fmt.Errorf("invalid update scope %q", scope)
	}

	var result *models.Event
	err := m.store.InTx(ctx, func(tx Tx) error {
		inst, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}

		if !inst.IsInstance() {
			if err := tx.UpdateEvent(ctx, inst.ID, edit); err != nil {
				return fmt.Errorf("update event: %w", err)
			}
			result, err = tx.GetEvent(ctx, inst.ID)
			return err
		}

		rule, err := tx.GetRule(ctx, *inst.RecurrenceRuleID)
		if err != nil {
			return fmt.Errorf("load recurrence rule: %w", err)
		}
		base, err := tx.GetEvent(ctx, *inst.BaseRecurringEventID)
		if err != nil {
			return fmt.Errorf("load base recurring event: %w", err)
		}

		if scope == ScopeThisInstance {
			if err := tx.UpdateEvent(ctx, inst.ID, edit); err != nil {
				return fmt.Errorf("update instance: %w", err)
			}
			result, err = tx.GetEvent(ctx, inst.ID)
			return err
		}

		current := recurrence.FromRule(rule)
		ruleChanged := rec != nil && !rec.Equal(current)
		durationChanged := datesEdited(edit, inst)

		filter := InstanceFilter{RecurrenceRuleID: inst.RecurrenceRuleID}
		if scope == ScopeThisAndFollowing {
			from := inst.StartDate
			filter.StartDateOnOrAfter = &from
		}

		if !ruleChanged && !durationChanged {
			if _, err := tx.BulkUpdateInstances(ctx, filter, edit.Fields()); err != nil {
				return fmt.Errorf("bulk update instances: %w", err)
			}
			if err := m.syncBaseFields(ctx, tx, rule, base, edit); err != nil {
				return err
			}
			result, err = tx.GetEvent(ctx, inst.ID)
			return err
		}

		result, err = m.resplit(ctx, tx, inst, rule, base, edit, rec, scope, filter, actingUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the event at the requested scope. Non-recurring events
// and base events are removed directly; instance deletions run through
// the reaper so a fully emptied series leaves no rule or base behind.
func (m *Mutator) Delete(ctx context.Context, eventID uuid.UUID, scope Scope) error {
	if !ValidScope(scope) {
		return fmt.Errorf("invalid delete scope %q", scope)
	}

	return m.store.InTx(ctx, func(tx Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}

		if !ev.IsInstance() {
			return m.removeEvents(ctx, tx, []uuid.UUID{ev.ID})
		}

		ruleID := *ev.RecurrenceRuleID
		baseID := *ev.BaseRecurringEventID

		var deleted []uuid.UUID
		switch scope {
		case ScopeThisInstance:
			if err := m.removeEvents(ctx, tx, []uuid.UUID{ev.ID}); err != nil {
				return err
			}
			deleted = []uuid.UUID{ev.ID}
		case ScopeAllInstances:
			// The whole series goes, exception instances included.
			deleted, err = tx.DeleteInstances(ctx, InstanceFilter{
				BaseRecurringEventID: ev.BaseRecurringEventID,
				IncludeExceptions:    true,
			})
			if err != nil {
				return fmt.Errorf("delete series instances: %w", err)
			}
			if err := m.detachEvents(ctx, tx, deleted); err != nil {
				return err
			}
		case ScopeThisAndFollowing:
			from := ev.StartDate
			deleted, err = tx.DeleteInstances(ctx, InstanceFilter{
				RecurrenceRuleID:   &ruleID,
				StartDateOnOrAfter: &from,
			})
			if err != nil {
				return fmt.Errorf("delete following instances: %w", err)
			}
			if err := m.detachEvents(ctx, tx, deleted); err != nil {
				return err
			}
		}

		rule, err := tx.GetRule(ctx, ruleID)
		if err == nil {
			if err := m.refreshLatestInstance(ctx, tx, rule); err != nil {
				return err
			}
		}

		m.logger.Info("deleted recurring event",
			zap.String("event_id", eventID.String()),
			zap.String("scope", string(scope)),
			zap.Int("instances", len(deleted)),
		)
		return m.reaper.Reap(ctx, tx, ruleID, baseID)
	})
}

// resplit implements the rule or duration change path: delete the
// targeted tail, regenerate it under a new rule, and reap the old series
// records if nothing references them any more.
func (m *Mutator) resplit(ctx context.Context, tx Tx, inst *models.Event, rule *models.RecurrenceRule, base *models.Event, edit EventEdit, rec *recurrence.Input, scope Scope, filter InstanceFilter, actingUserID uuid.UUID) (*models.Event, error) {
	deleted, err := tx.DeleteInstances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete split tail: %w", err)
	}
	if err := m.detachEvents(ctx, tx, deleted); err != nil {
		return nil, err
	}
	if err := m.refreshLatestInstance(ctx, tx, rule); err != nil {
		return nil, err
	}

	tpl := edit.Apply(seriesTemplate(inst, rule, scope))
	input := recurrence.ApplyOverrides(edit.StartDate, recurrence.FromRule(rule), rec)
	ruleString := input.Encode()

	dates, err := m.expander.Expand(ruleString, tpl.StartDate, windowEnd(tpl, input))
	if err != nil {
		return nil, fmt.Errorf("expand recurrence dates: %w", err)
	}

	newRule := &models.RecurrenceRule{
		ID:                   uuid.New(),
		OrganizationID:       inst.OrganizationID,
		BaseRecurringEventID: base.ID,
		RuleString:           ruleString,
		Frequency:            string(input.Frequency),
		Interval:             input.Normalized().Interval,
		ByDay:                input.Normalized().ByDay,
		ByMonth:              input.Normalized().ByMonth,
		ByMonthDay:           input.Normalized().ByMonthDay,
		RecurrenceStartDate:  tpl.StartDate.UTC(),
		RecurrenceEndDate:    windowEnd(tpl, input),
		LatestInstanceDate:   tpl.StartDate.UTC(),
	}
	if input.Count > 0 {
		c := input.Count
		newRule.Count = &c
	}
	if len(dates) > 0 {
		newRule.LatestInstanceDate = dates[len(dates)-1]
	}
	if err := tx.CreateRule(ctx, newRule); err != nil {
		return nil, fmt.Errorf("create recurrence rule: %w", err)
	}

	// The base event keeps serving as the series template; its end date
	// follows the new rule's bound end.
	base.Title = tpl.Title
	base.Description = tpl.Description
	base.Location = tpl.Location
	base.AllDay = tpl.AllDay
	base.IsPublic = tpl.IsPublic
	base.IsRegisterable = tpl.IsRegisterable
	base.StartDate = tpl.StartDate.UTC()
	base.EndDate = windowEnd(tpl, input)
	base.StartTime = tpl.StartTime
	base.EndTime = tpl.EndTime
	if err := tx.SaveEvent(ctx, base); err != nil {
		return nil, fmt.Errorf("update base recurring event: %w", err)
	}

	instances, err := m.generator.Materialize(ctx, tx, tpl, dates, newRule.ID, base.ID, inst.OrganizationID, actingUserID)
	if err != nil {
		return nil, err
	}

	// Only the old rule is a reap candidate here. The base event stays:
	// it is the template of the rule just created, even when that rule
	// expanded to an empty window.
	if err := m.reaper.ReapRule(ctx, tx, rule.ID); err != nil {
		return nil, err
	}

	m.logger.Info("split recurring series",
		zap.String("old_rule_id", rule.ID.String()),
		zap.String("new_rule_id", newRule.ID.String()),
		zap.String("scope", string(scope)),
		zap.Int("deleted", len(deleted)),
		zap.Int("regenerated", len(instances)),
	)

	if len(instances) > 0 {
		return instances[0], nil
	}
	return base, nil
}

// syncBaseFields propagates non-date field edits onto the base event when
// the edited rule is the series' current one, recognizable by the base
// end date mirroring the rule's bound end.
func (m *Mutator) syncBaseFields(ctx context.Context, tx Tx, rule *models.RecurrenceRule, base *models.Event, edit EventEdit) error {
	if !sameBound(rule.RecurrenceEndDate, base.EndDate) {
		return nil
	}
	fields := edit.Fields()
	if fields.Empty() {
		return nil
	}
	baseEdit := EventEdit{
		Title:          fields.Title,
		Description:    fields.Description,
		Location:       fields.Location,
		AllDay:         fields.AllDay,
		IsPublic:       fields.IsPublic,
		IsRegisterable: fields.IsRegisterable,
		StartTime:      fields.StartTime,
		EndTime:        fields.EndTime,
	}
	if err := tx.UpdateEvent(ctx, base.ID, baseEdit); err != nil {
		return fmt.Errorf("sync base recurring event: %w", err)
	}
	return nil
}

// refreshLatestInstance rewrites the rule's latest-instance bookkeeping
// from the instances still referencing it. A rule with no referents left
// is the reaper's problem, not ours.
func (m *Mutator) refreshLatestInstance(ctx context.Context, tx Tx, rule *models.RecurrenceRule) error {
	latest, err := tx.LatestInstanceStart(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("find latest instance: %w", err)
	}
	if latest == nil || latest.Equal(rule.LatestInstanceDate) {
		return nil
	}
	rule.LatestInstanceDate = *latest
	if err := tx.UpdateRule(ctx, rule); err != nil {
		return fmt.Errorf("update recurrence rule: %w", err)
	}
	return nil
}

// removeEvents deletes events one by one along with their attendee rows
// and user event-list entries.
func (m *Mutator) removeEvents(ctx context.Context, tx Tx, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := tx.DeleteEvent(ctx, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
	}
	return m.detachEvents(ctx, tx, ids)
}

// detachEvents removes attendee rows and user event-list entries for
// already-deleted events.
func (m *Mutator) detachEvents(ctx context.Context, tx Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.DeleteAttendees(ctx, ids); err != nil {
		return fmt.Errorf("delete attendee associations: %w", err)
	}
	if err := tx.PullUserEvents(ctx, ids); err != nil {
		return fmt.Errorf("pull user event lists: %w", err)
	}
	return nil
}

// seriesTemplate rebuilds the generation template from the targeted
// instance and its rule. A following-scope split starts at the targeted
// instance; an all-instances split starts back at the series origin.
func seriesTemplate(inst *models.Event, rule *models.RecurrenceRule, scope Scope) EventTemplate {
	start := inst.StartDate
	if scope == ScopeAllInstances {
		start = rule.RecurrenceStartDate
	}
	return EventTemplate{
		Title:          inst.Title,
		Description:    inst.Description,
		Location:       inst.Location,
		AllDay:         inst.AllDay,
		IsPublic:       inst.IsPublic,
		IsRegisterable: inst.IsRegisterable,
		StartDate:      start,
		EndDate:        rule.RecurrenceEndDate,
		StartTime:      inst.StartTime,
		EndTime:        inst.EndTime,
	}
}

// datesEdited reports whether the edit moves either of the instance's
// occurrence dates.
func datesEdited(edit EventEdit, inst *models.Event) bool {
	if edit.StartDate != nil && !edit.StartDate.Equal(inst.StartDate) {
		return true
	}
	if edit.EndDate != nil && (inst.EndDate == nil || !edit.EndDate.Equal(*inst.EndDate)) {
		return true
	}
	return false
}

func sameBound(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
