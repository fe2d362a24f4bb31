package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PalisadoesFoundation/talawa-api-sub014/config"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func newTestEngine(store Store) (*Generator, *Mutator) {
	expander := recurrence.NewExpander(config.RecurrenceConfig{HorizonMonths: 12, MaxInstances: 100})
	gen := NewGenerator(store, expander, nil)
	mut := NewMutator(store, gen, NewReaper(nil), expander, nil)
	return gen, mut
}

// weeklyTemplate is a Monday series template used across the tests.
func weeklyTemplate(until string) (EventTemplate, *recurrence.Input) {
	tpl := EventTemplate{
		Title:     "Weekly Standup",
		Location:  "Room 1",
		IsPublic:  true,
		StartDate: date("2024-01-01"),
		StartTime: strPtr("10:00"),
		EndTime:   strPtr("10:30"),
	}
	rec := &recurrence.Input{
		Frequency: recurrence.Weekly,
		ByDay:     []string{"MO"},
	}
	if until != "" {
		rec.Until = datePtr(until)
		tpl.EndDate = rec.Until
	}
	return tpl, rec
}

func TestGenerateBoundedWeekly(t *testing.T) {
	store := newMemStore()
	gen, _ := newTestEngine(store)
	user, org := uuid.New(), uuid.New()

	tpl, rec := weeklyTemplate("2024-01-22")
	first, err := gen.Generate(context.Background(), tpl, rec, user, org)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first == nil {
		t.Fatal("expected a first instance")
	}
	if !first.StartDate.Equal(date("2024-01-01")) {
		t.Errorf("first instance start = %v, want 2024-01-01", first.StartDate)
	}

	var base *models.Event
	var rule *models.RecurrenceRule
	for _, ev := range store.events {
		if ev.IsBaseRecurringEvent {
			base = ev
		}
	}
	for _, r := range store.rules {
		rule = r
	}
	if base == nil || rule == nil {
		t.Fatal("expected one base event and one rule")
	}

	if !base.Recurring {
		t.Error("base event must be marked recurring")
	}
	if base.EndDate == nil || !base.EndDate.Equal(date("2024-01-22")) {
		t.Errorf("base end date = %v, want the rule's bound end", base.EndDate)
	}

	instances := store.instancesOfRule(rule.ID)
	if len(instances) != 4 {
		t.Fatalf("got %d instances, want 4", len(instances))
	}
	prev := instances[0].StartDate
	for i, inst := range instances {
		if !inst.Recurring || inst.IsBaseRecurringEvent {
			t.Errorf("instance %d has wrong flags", i)
		}
		if inst.RecurrenceRuleID == nil || *inst.RecurrenceRuleID != rule.ID {
			t.Errorf("instance %d not referencing the rule", i)
		}
		if inst.BaseRecurringEventID == nil || *inst.BaseRecurringEventID != base.ID {
			t.Errorf("instance %d not referencing the base event", i)
		}
		if inst.EndDate == nil || !inst.EndDate.Equal(inst.StartDate) {
			t.Errorf("instance %d end date should equal its occurrence date", i)
		}
		if inst.Title != tpl.Title || inst.Location != tpl.Location {
			t.Errorf("instance %d lost template fields", i)
		}
		if i > 0 && inst.StartDate.Sub(prev) != 7*24*time.Hour {
			t.Errorf("instance %d not 7 days after predecessor", i)
		}
		prev = inst.StartDate
		if _, ok := store.attendees[inst.ID][user]; !ok {
			t.Errorf("instance %d missing attendee association", i)
		}
	}

	if !rule.LatestInstanceDate.Equal(date("2024-01-22")) {
		t.Errorf("latest instance date = %v, want 2024-01-22", rule.LatestInstanceDate)
	}
	for _, list := range models.UserEventLists {
		if got := len(store.lists[user][list]); got != 4 {
			t.Errorf("list %s has %d event ids, want 4", list, got)
		}
	}
}

func TestGenerateDefaultRule(t *testing.T) {
	store := newMemStore()
	gen, _ := newTestEngine(store)

	tpl, _ := weeklyTemplate("")
	tpl.EndDate = datePtr("2024-01-31")
	first, err := gen.Generate(context.Background(), tpl, nil, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first == nil {
		t.Fatal("expected a first instance")
	}

	for _, rule := range store.rules {
		if rule.RuleString != "RRULE:FREQ=WEEKLY;BYDAY=MO" {
			t.Errorf("default rule string = %q", rule.RuleString)
		}
	}
	// Mondays in January 2024: 1st, 8th, 15th, 22nd, 29th.
	instances, _ := store.ListInstances(context.Background(), InstanceFilter{})
	if len(instances) != 5 {
		t.Errorf("got %d instances, want 5", len(instances))
	}
}

func TestGenerateUnboundedStopsAtHorizon(t *testing.T) {
	store := newMemStore()
	gen, _ := newTestEngine(store)

	tpl, rec := weeklyTemplate("")
	if _, err := gen.Generate(context.Background(), tpl, rec, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	horizon := date("2024-01-01").AddDate(0, 12, 0)
	instances, _ := store.ListInstances(context.Background(), InstanceFilter{})
	if len(instances) == 0 {
		t.Fatal("expected materialized instances")
	}
	if len(instances) > 100 {
		t.Errorf("instance cap exceeded: %d", len(instances))
	}
	last := instances[len(instances)-1]
	if last.StartDate.After(horizon) {
		t.Errorf("instance %v beyond horizon %v", last.StartDate, horizon)
	}
	for _, rule := range store.rules {
		if rule.RecurrenceEndDate != nil {
			t.Error("unbounded rule should have no end date")
		}
		if !rule.LatestInstanceDate.Equal(last.StartDate) {
			t.Errorf("latest instance date = %v, want %v", rule.LatestInstanceDate, last.StartDate)
		}
	}
}

func TestGenerateZeroInstances(t *testing.T) {
	store := newMemStore()
	gen, _ := newTestEngine(store)

	tpl, rec := weeklyTemplate("")
	// Bound before the series ever starts: zero occurrences, no error.
	rec.Until = datePtr("2023-12-01")
	first, err := gen.Generate(context.Background(), tpl, rec, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first != nil {
		t.Errorf("expected no first instance, got %v", first.ID)
	}
	instances, _ := store.ListInstances(context.Background(), InstanceFilter{})
	if len(instances) != 0 {
		t.Errorf("got %d instances, want 0", len(instances))
	}
}
