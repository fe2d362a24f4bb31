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

// Generator builds brand-new recurring series: one base event, one
// recurrence rule, and every instance the materialization window allows,
// plus the acting user's attendee rows and event lists, all inside one
// transaction.
type Generator struct {
	store    Store
	expander *recurrence.Expander
	logger   *zap.Logger
}

// NewGenerator creates a series generator.
func NewGenerator(store Store, expander *recurrence.Expander, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, expander: expander, logger: logger}
}

// Generate creates a new series from the template and recurrence input
// and returns the chronologically first instance. A nil recurrence input
// falls back to a weekly rule anchored at the template start date. A
// window that expands to zero dates produces a series of zero instances,
// not an error.
func (g *Generator) Generate(ctx context.Context, tpl EventTemplate, rec *recurrence.Input, actingUserID, orgID uuid.UUID) (*models.Event, error) {
	input := resolveInput(tpl, rec)
	ruleString := input.Encode()

	var first *models.Event
	err := g.store.InTx(ctx, func(tx Tx) error {
		base := baseEventFromTemplate(tpl, input, actingUserID, orgID)
		if err := tx.CreateEvent(ctx, base); err != nil {
			return fmt.Errorf("create base recurring event: %w", err)
		}

		dates, err := g.expander.Expand(ruleString, tpl.StartDate, windowEnd(tpl, input))
		if err != nil {
			return fmt.Errorf("expand recurrence dates: %w", err)
		}

		rule := &models.RecurrenceRule{
			ID:                   uuid.New(),
			OrganizationID:       orgID,
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
			rule.Count = &c
		}
		if len(dates) > 0 {
			rule.LatestInstanceDate = dates[len(dates)-1]
		}
		if err := tx.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("create recurrence rule: %w", err)
		}

		instances, err := g.Materialize(ctx, tx, tpl, dates, rule.ID, base.ID, orgID, actingUserID)
		if err != nil {
			return err
		}
		if len(instances) > 0 {
			first = instances[0]
		}
		g.logger.Info("generated recurring series",
			zap.String("base_event_id", base.ID.String()),
			zap.String("recurrence_rule_id", rule.ID.String()),
			zap.Int("instances", len(instances)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

// Materialize creates one instance per occurrence date from the template
// plus the acting user's attendee associations and event-list entries.
// It is shared between initial generation and series regeneration after a
// split. The returned instances are in chronological order.
func (g *Generator) Materialize(ctx context.Context, tx Tx, tpl EventTemplate, dates []time.Time, ruleID, baseEventID, orgID, actingUserID uuid.UUID) ([]*models.Event, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	instances := make([]*models.Event, 0, len(dates))
	ids := make([]uuid.UUID, 0, len(dates))
	for _, d := range dates {
		occurrence := d.UTC()
		rid := ruleID
		bid := baseEventID
		inst := &models.Event{
			ID:                   uuid.New(),
			OrganizationID:       orgID,
			CreatorID:            actingUserID,
			Title:                tpl.Title,
			Description:          tpl.Description,
			Location:             tpl.Location,
			AllDay:               tpl.AllDay,
			IsPublic:             tpl.IsPublic,
			IsRegisterable:       tpl.IsRegisterable,
			StartDate:            occurrence,
			EndDate:              &occurrence,
			StartTime:            tpl.StartTime,
			EndTime:              tpl.EndTime,
			Recurring:            true,
			RecurrenceRuleID:     &rid,
			BaseRecurringEventID: &bid,
		}
		instances = append(instances, inst)
		ids = append(ids, inst.ID)
	}

	if err := tx.CreateInstances(ctx, instances); err != nil {
		return nil, fmt.Errorf("create instances: %w", err)
	}
	if err := tx.CreateAttendees(ctx, actingUserID, ids); err != nil {
		return nil, fmt.Errorf("create attendee associations: %w", err)
	}
	if err := tx.PushUserEvents(ctx, actingUserID, ids); err != nil {
		return nil, fmt.Errorf("push user event lists: %w", err)
	}
	return instances, nil
}

// resolveInput applies the default-rule policy: without an explicit
// recurrence description the series recurs weekly on the template start
// weekday.
func resolveInput(tpl EventTemplate, rec *recurrence.Input) recurrence.Input {
	if rec == nil {
		return recurrence.Default(tpl.StartDate)
	}
	return *rec
}

// windowEnd picks the recurrence window end: an explicit until bound
// wins, otherwise the template end date. Nil means unbounded.
func windowEnd(tpl EventTemplate, input recurrence.Input) *time.Time {
	if input.Until != nil {
		u := input.Until.UTC()
		return &u
	}
	if tpl.EndDate != nil {
		u := tpl.EndDate.UTC()
		return &u
	}
	return nil
}

// baseEventFromTemplate shapes the series template record. Its end date
// mirrors the rule's bound end date for as long as that rule is current.
func baseEventFromTemplate(tpl EventTemplate, input recurrence.Input, actingUserID, orgID uuid.UUID) *models.Event {
	return &models.Event{
		ID:                   uuid.New(),
		OrganizationID:       orgID,
		CreatorID:            actingUserID,
		Title:                tpl.Title,
		Description:          tpl.Description,
		Location:             tpl.Location,
		AllDay:               tpl.AllDay,
		IsPublic:             tpl.IsPublic,
		IsRegisterable:       tpl.IsRegisterable,
		StartDate:            tpl.StartDate.UTC(),
		EndDate:              windowEnd(tpl, input),
		StartTime:            tpl.StartTime,
		EndTime:              tpl.EndTime,
		Recurring:            true,
		IsBaseRecurringEvent: true,
	}
}
