package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
)

// seedWeekly generates the standard bounded series: Mondays 2024-01-01,
// 08, 15, 22 under a single rule and base event.
func seedWeekly(t *testing.T) (*memStore, *Mutator, []*models.Event, *models.RecurrenceRule, *models.Event, uuid.UUID) {
	t.Helper()
	store := newMemStore()
	gen, mut := newTestEngine(store)
	user, org := uuid.New(), uuid.New()

	tpl, rec := weeklyTemplate("2024-01-22")
	if _, err := gen.Generate(context.Background(), tpl, rec, user, org); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var rule *models.RecurrenceRule
	for _, r := range store.rules {
		rule = r
	}
	var base *models.Event
	for _, ev := range store.events {
		if ev.IsBaseRecurringEvent {
			base = ev
		}
	}
	instances := store.instancesOfRule(rule.ID)
	if len(instances) != 4 {
		t.Fatalf("seed got %d instances, want 4", len(instances))
	}
	return store, mut, instances, rule, base, user
}

func TestUpdateThisInstanceOnly(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)
	target := instances[1]

	got, err := mut.Update(context.Background(), target.ID, EventEdit{Title: strPtr("Retro")}, nil, ScopeThisInstance, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Retro" {
		t.Errorf("updated title = %q", got.Title)
	}
	for _, inst := range store.instancesOfRule(rule.ID) {
		if inst.ID == target.ID {
			continue
		}
		if inst.Title != "Weekly Standup" {
			t.Errorf("sibling %v title changed to %q", inst.StartDate, inst.Title)
		}
	}
	if store.events[base.ID].Title != "Weekly Standup" {
		t.Error("single-instance edit must not touch the base template")
	}
	if len(store.rules) != 1 {
		t.Errorf("rule count = %d, want 1", len(store.rules))
	}
}

func TestUpdateAllInstancesFieldOnly(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	_, err := mut.Update(context.Background(), instances[0].ID, EventEdit{Location: strPtr("Room 2")}, nil, ScopeAllInstances, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	after := store.instancesOfRule(rule.ID)
	if len(after) != 4 {
		t.Fatalf("instance count changed: %d", len(after))
	}
	for i, inst := range after {
		if inst.Location != "Room 2" {
			t.Errorf("instance %d location = %q", i, inst.Location)
		}
		if inst.ID != instances[i].ID {
			t.Errorf("instance %d identity changed; field edits must not resplit", i)
		}
		if !inst.StartDate.Equal(instances[i].StartDate) {
			t.Errorf("instance %d date moved", i)
		}
	}
	if store.events[base.ID].Location != "Room 2" {
		t.Error("base template should follow bulk field edits of its current rule")
	}
	if len(store.rules) != 1 {
		t.Errorf("rule count = %d, want 1", len(store.rules))
	}
}

func TestUpdateFollowingFieldOnly(t *testing.T) {
	store, mut, instances, rule, _, user := seedWeekly(t)

	_, err := mut.Update(context.Background(), instances[2].ID, EventEdit{Title: strPtr("Planning")}, nil, ScopeThisAndFollowing, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for i, inst := range store.instancesOfRule(rule.ID) {
		want := "Weekly Standup"
		if i >= 2 {
			want = "Planning"
		}
		if inst.Title != want {
			t.Errorf("instance %d title = %q, want %q", i, inst.Title, want)
		}
	}
}

func TestExceptionExcludedFromBulkScopes(t *testing.T) {
	store, mut, instances, rule, _, user := seedWeekly(t)

	_, err := mut.Update(context.Background(), instances[1].ID,
		EventEdit{Title: strPtr("Special"), MarkException: boolPtr(true)}, nil, ScopeThisInstance, user)
	if err != nil {
		t.Fatalf("mark exception: %v", err)
	}
	_, err = mut.Update(context.Background(), instances[0].ID, EventEdit{Title: strPtr("Renamed")}, nil, ScopeAllInstances, user)
	if err != nil {
		t.Fatalf("bulk update: %v", err)
	}

	for _, inst := range store.instancesOfRule(rule.ID) {
		want := "Renamed"
		if inst.ID == instances[1].ID {
			want = "Special"
		}
		if inst.Title != want {
			t.Errorf("instance %v title = %q, want %q", inst.StartDate, inst.Title, want)
		}
	}
}

func TestUpdateFollowingWithNewRuleSplitsSeries(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	newRec := &recurrence.Input{
		Frequency: recurrence.Daily,
		Until:     datePtr("2024-01-25"),
	}
	got, err := mut.Update(context.Background(), instances[2].ID, EventEdit{}, newRec, ScopeThisAndFollowing, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The old rule keeps the head of the series.
	head := store.instancesOfRule(rule.ID)
	if len(head) != 2 {
		t.Fatalf("old rule keeps %d instances, want 2", len(head))
	}
	oldRule := store.rules[rule.ID]
	if oldRule == nil {
		t.Fatal("old rule reaped while still referenced")
	}
	if !oldRule.LatestInstanceDate.Equal(date("2024-01-08")) {
		t.Errorf("old rule latest instance = %v, want 2024-01-08", oldRule.LatestInstanceDate)
	}

	// The tail was regenerated daily under a new rule.
	if len(store.rules) != 2 {
		t.Fatalf("rule count = %d, want 2", len(store.rules))
	}
	var newRule *models.RecurrenceRule
	for id, r := range store.rules {
		if id != rule.ID {
			newRule = r
		}
	}
	if newRule.Frequency != "DAILY" {
		t.Errorf("new rule frequency = %q", newRule.Frequency)
	}
	tail := store.instancesOfRule(newRule.ID)
	if len(tail) != 11 {
		t.Fatalf("tail has %d instances, want 11 (daily Jan 15..25)", len(tail))
	}
	if !got.StartDate.Equal(date("2024-01-15")) {
		t.Errorf("returned instance starts %v, want 2024-01-15", got.StartDate)
	}
	for _, inst := range tail {
		if *inst.BaseRecurringEventID != base.ID {
			t.Error("regenerated tail must keep the series base event")
		}
	}
	if b := store.events[base.ID]; b.EndDate == nil || !b.EndDate.Equal(date("2024-01-25")) {
		t.Errorf("base end date = %v, want the new rule's bound end", store.events[base.ID].EndDate)
	}
}

func TestUpdateAllInstancesWithNewRuleReapsOldRule(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	newRec := &recurrence.Input{
		Frequency: recurrence.Weekly,
		ByDay:     []string{"WE"},
		Until:     datePtr("2024-01-22"),
	}
	_, err := mut.Update(context.Background(), instances[0].ID, EventEdit{}, newRec, ScopeAllInstances, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok := store.rules[rule.ID]; ok {
		t.Error("old rule with zero referents should be reaped")
	}
	if len(store.rules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(store.rules))
	}
	if _, ok := store.events[base.ID]; !ok {
		t.Fatal("base event must survive while the new rule references it")
	}
	// Wednesdays from 2024-01-01 through 2024-01-22: 3rd, 10th, 17th.
	all, _ := store.ListInstances(context.Background(), InstanceFilter{})
	if len(all) != 3 {
		t.Errorf("got %d instances, want 3", len(all))
	}
}

func TestDurationChangeForcesResplit(t *testing.T) {
	store, mut, instances, rule, _, user := seedWeekly(t)

	// Drag the third occurrence from Monday the 15th to Tuesday the 16th.
	edit := EventEdit{StartDate: datePtr("2024-01-16"), EndDate: datePtr("2024-01-16")}
	_, err := mut.Update(context.Background(), instances[2].ID, edit, nil, ScopeThisAndFollowing, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(store.instancesOfRule(rule.ID)) != 2 {
		t.Error("head of the series should stay with the old rule")
	}
	if len(store.rules) != 2 {
		t.Fatalf("rule count = %d, want 2 after a date move", len(store.rules))
	}
	var newRule *models.RecurrenceRule
	for id, r := range store.rules {
		if id != rule.ID {
			newRule = r
		}
	}
	// Weekly pattern re-anchored to the new weekday.
	if len(newRule.ByDay) != 1 || newRule.ByDay[0] != "TU" {
		t.Errorf("new rule by_day = %v, want [TU]", newRule.ByDay)
	}
	tail := store.instancesOfRule(newRule.ID)
	if len(tail) != 1 || !tail[0].StartDate.Equal(date("2024-01-16")) {
		t.Errorf("tail = %v, want single instance on 2024-01-16", tail)
	}
}

func TestDeleteThisInstance(t *testing.T) {
	store, mut, instances, rule, base, _ := seedWeekly(t)

	if err := mut.Delete(context.Background(), instances[0].ID, ScopeThisInstance); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.instancesOfRule(rule.ID)) != 3 {
		t.Error("exactly one instance should be removed")
	}
	if _, ok := store.rules[rule.ID]; !ok {
		t.Error("rule still referenced, must survive")
	}
	if _, ok := store.events[base.ID]; !ok {
		t.Error("base still referenced, must survive")
	}
	if _, ok := store.attendees[instances[0].ID]; ok {
		t.Error("attendee associations of the deleted instance must be removed")
	}
}

func TestDeleteAllInstancesTearsDownSeries(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	// Exception instances are still part of whole-series deletion.
	_, err := mut.Update(context.Background(), instances[1].ID,
		EventEdit{MarkException: boolPtr(true)}, nil, ScopeThisInstance, user)
	if err != nil {
		t.Fatalf("mark exception: %v", err)
	}

	if err := mut.Delete(context.Background(), instances[2].ID, ScopeAllInstances); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, _ := store.ListInstances(context.Background(), InstanceFilter{IncludeExceptions: true})
	if len(all) != 0 {
		t.Errorf("%d instances left, want 0", len(all))
	}
	if _, ok := store.rules[rule.ID]; ok {
		t.Error("rule should be reaped with its last instance")
	}
	if _, ok := store.events[base.ID]; ok {
		t.Error("base event should be reaped with its last instance")
	}
	for _, list := range models.UserEventLists {
		if got := len(store.lists[user][list]); got != 0 {
			t.Errorf("list %s still has %d event ids", list, got)
		}
	}
}

func TestDeleteAllInstancesReapsEveryRuleOfSplitSeries(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	newRec := &recurrence.Input{
		Frequency: recurrence.Daily,
		Until:     datePtr("2024-01-25"),
	}
	_, err := mut.Update(context.Background(), instances[2].ID, EventEdit{}, newRec, ScopeThisAndFollowing, user)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(store.rules) != 2 {
		t.Fatalf("rule count after split = %d, want 2", len(store.rules))
	}
	var tailRule *models.RecurrenceRule
	for id, r := range store.rules {
		if id != rule.ID {
			tailRule = r
		}
	}
	tail := store.instancesOfRule(tailRule.ID)

	// Whole-series deletion from a tail instance must also collect the
	// head rule, which no longer shares the targeted instance's rule.
	if err := mut.Delete(context.Background(), tail[0].ID, ScopeAllInstances); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, _ := store.ListInstances(context.Background(), InstanceFilter{IncludeExceptions: true})
	if len(all) != 0 {
		t.Errorf("%d instances left, want 0", len(all))
	}
	if len(store.rules) != 0 {
		t.Errorf("%d rules left, want 0", len(store.rules))
	}
	if _, ok := store.events[base.ID]; ok {
		t.Error("base event should be reaped with its last instance")
	}
}

func TestResplitToEmptyWindowKeepsBaseAndNewRule(t *testing.T) {
	store, mut, instances, rule, base, user := seedWeekly(t)

	// A bound end before the series start expands to nothing; the series
	// becomes deliberately empty rather than an error.
	newRec := &recurrence.Input{
		Frequency: recurrence.Weekly,
		ByDay:     []string{"MO"},
		Until:     datePtr("2023-12-01"),
	}
	got, err := mut.Update(context.Background(), instances[0].ID, EventEdit{}, newRec, ScopeAllInstances, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got.ID != base.ID {
		t.Errorf("representative = %v, want the base event", got.ID)
	}
	kept, ok := store.events[base.ID]
	if !ok {
		t.Fatal("base event must survive an empty regeneration")
	}
	if kept.EndDate == nil || !kept.EndDate.Equal(date("2023-12-01")) {
		t.Errorf("base end date = %v, want the new rule's bound end", kept.EndDate)
	}

	if _, ok := store.rules[rule.ID]; ok {
		t.Error("old rule with zero referents should be reaped")
	}
	if len(store.rules) != 1 {
		t.Fatalf("rule count = %d, want the new rule alone", len(store.rules))
	}
	for _, r := range store.rules {
		if r.BaseRecurringEventID != base.ID {
			t.Error("new rule must keep referencing the surviving base event")
		}
	}
	all, _ := store.ListInstances(context.Background(), InstanceFilter{IncludeExceptions: true})
	if len(all) != 0 {
		t.Errorf("%d instances left, want 0", len(all))
	}
}

func TestDeleteFollowingUpdatesRuleBookkeeping(t *testing.T) {
	store, mut, instances, rule, base, _ := seedWeekly(t)

	if err := mut.Delete(context.Background(), instances[2].ID, ScopeThisAndFollowing); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	head := store.instancesOfRule(rule.ID)
	if len(head) != 2 {
		t.Fatalf("%d instances left, want 2", len(head))
	}
	r := store.rules[rule.ID]
	if r == nil {
		t.Fatal("rule still referenced, must survive")
	}
	if !r.LatestInstanceDate.Equal(date("2024-01-08")) {
		t.Errorf("latest instance date = %v, want 2024-01-08", r.LatestInstanceDate)
	}
	if _, ok := store.events[base.ID]; !ok {
		t.Error("base still referenced, must survive")
	}
}

func TestUpdateMissingEventSurfacesNotFound(t *testing.T) {
	_, mut, _, _, _, user := seedWeekly(t)

	_, err := mut.Update(context.Background(), uuid.New(), EventEdit{Title: strPtr("x")}, nil, ScopeThisInstance, user)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := mut.Delete(context.Background(), uuid.New(), ScopeThisInstance); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStandaloneEventIgnoresScope(t *testing.T) {
	store := newMemStore()
	_, mut := newTestEngine(store)
	user := uuid.New()

	ev := &models.Event{ID: uuid.New(), OrganizationID: uuid.New(), CreatorID: user, Title: "One-off", StartDate: date("2024-03-01")}
	if err := store.CreateEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	got, err := mut.Update(context.Background(), ev.ID, EventEdit{Title: strPtr("Renamed")}, nil, ScopeAllInstances, user)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Renamed" {
		t.Errorf("title = %q", got.Title)
	}
	if len(store.rules) != 0 {
		t.Error("no rules should exist for standalone events")
	}
}
