package events

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
)

// memStore is an in-memory Store used by the engine tests. InTx runs the
// function directly against the store; the tests are single-threaded so
// atomicity is not exercised here.
type memStore struct {
	events    map[uuid.UUID]*models.Event
	rules     map[uuid.UUID]*models.RecurrenceRule
	attendees map[uuid.UUID]map[uuid.UUID]struct{}           // eventID -> userIDs
	lists     map[uuid.UUID]map[models.EventList][]uuid.UUID // userID -> list -> eventIDs
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[uuid.UUID]*models.Event),
		rules:     make(map[uuid.UUID]*models.RecurrenceRule),
		attendees: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		lists:     make(map[uuid.UUID]map[models.EventList][]uuid.UUID),
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(s)
}

func (s *memStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *memStore) ListOrganizationInstances(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.Event, error) {
	var list []*models.Event
	for _, ev := range s.events {
		if ev.OrganizationID != orgID || ev.IsBaseRecurringEvent {
			continue
		}
		if ev.StartDate.Before(from) || ev.StartDate.After(to) {
			continue
		}
		cp := *ev
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartDate.Before(list[j].StartDate) })
	return list, nil
}

func (s *memStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

func (s *memStore) UpdateEvent(ctx context.Context, id uuid.UUID, edit EventEdit) error {
	ev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if edit.Title != nil {
		ev.Title = *edit.Title
	}
	if edit.Description != nil {
		ev.Description = *edit.Description
	}
	if edit.Location != nil {
		ev.Location = *edit.Location
	}
	if edit.AllDay != nil {
		ev.AllDay = *edit.AllDay
	}
	if edit.IsPublic != nil {
		ev.IsPublic = *edit.IsPublic
	}
	if edit.IsRegisterable != nil {
		ev.IsRegisterable = *edit.IsRegisterable
	}
	if edit.StartDate != nil {
		ev.StartDate = edit.StartDate.UTC()
	}
	if edit.EndDate != nil {
		d := edit.EndDate.UTC()
		ev.EndDate = &d
	}
	if edit.StartTime != nil {
		ev.StartTime = edit.StartTime
	}
	if edit.EndTime != nil {
		ev.EndTime = edit.EndTime
	}
	if edit.MarkException != nil {
		ev.IsRecurringEventException = *edit.MarkException
	}
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) SaveEvent(ctx context.Context, ev *models.Event) error {
	if _, ok := s.events[ev.ID]; !ok {
		return ErrNotFound
	}
	cp := *ev
	cp.UpdatedAt = time.Now().UTC()
	s.events[ev.ID] = &cp
	return nil
}

func (s *memStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *memStore) CreateInstances(ctx context.Context, instances []*models.Event) error {
	for _, inst := range instances {
		if err := s.CreateEvent(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) matches(f InstanceFilter, ev *models.Event) bool {
	if !ev.Recurring || ev.IsBaseRecurringEvent {
		return false
	}
	if f.RecurrenceRuleID != nil && (ev.RecurrenceRuleID == nil || *ev.RecurrenceRuleID != *f.RecurrenceRuleID) {
		return false
	}
	if f.BaseRecurringEventID != nil && (ev.BaseRecurringEventID == nil || *ev.BaseRecurringEventID != *f.BaseRecurringEventID) {
		return false
	}
	if f.StartDateOnOrAfter != nil && ev.StartDate.Before(*f.StartDateOnOrAfter) {
		return false
	}
	if !f.IncludeExceptions && ev.IsRecurringEventException {
		return false
	}
	return true
}

func (s *memStore) ListInstances(ctx context.Context, f InstanceFilter) ([]*models.Event, error) {
	var list []*models.Event
	for _, ev := range s.events {
		if s.matches(f, ev) {
			cp := *ev
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartDate.Before(list[j].StartDate) })
	return list, nil
}

func (s *memStore) BulkUpdateInstances(ctx context.Context, f InstanceFilter, fields FieldUpdate) (int, error) {
	n := 0
	for _, ev := range s.events {
		if !s.matches(f, ev) {
			continue
		}
		if fields.Title != nil {
			ev.Title = *fields.Title
		}
		if fields.Description != nil {
			ev.Description = *fields.Description
		}
		if fields.Location != nil {
			ev.Location = *fields.Location
		}
		if fields.AllDay != nil {
			ev.AllDay = *fields.AllDay
		}
		if fields.IsPublic != nil {
			ev.IsPublic = *fields.IsPublic
		}
		if fields.IsRegisterable != nil {
			ev.IsRegisterable = *fields.IsRegisterable
		}
		if fields.StartTime != nil {
			ev.StartTime = fields.StartTime
		}
		if fields.EndTime != nil {
			ev.EndTime = fields.EndTime
		}
		ev.UpdatedAt = time.Now().UTC()
		n++
	}
	return n, nil
}

func (s *memStore) DeleteInstances(ctx context.Context, f InstanceFilter) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, ev := range s.events {
		if s.matches(f, ev) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(s.events, id)
	}
	return ids, nil
}

func (s *memStore) CountInstancesByRule(ctx context.Context, ruleID uuid.UUID) (int, error) {
	n := 0
	for _, ev := range s.events {
		if ev.IsBaseRecurringEvent || ev.RecurrenceRuleID == nil {
			continue
		}
		if *ev.RecurrenceRuleID == ruleID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountInstancesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) (int, error) {
	n := 0
	for _, ev := range s.events {
		if ev.IsBaseRecurringEvent || ev.BaseRecurringEventID == nil {
			continue
		}
		if *ev.BaseRecurringEventID == baseEventID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) LatestInstanceStart(ctx context.Context, ruleID uuid.UUID) (*time.Time, error) {
	var latest *time.Time
	for _, ev := range s.events {
		if ev.IsBaseRecurringEvent || ev.RecurrenceRuleID == nil || *ev.RecurrenceRuleID != ruleID {
			continue
		}
		if latest == nil || ev.StartDate.After(*latest) {
			d := ev.StartDate
			latest = &d
		}
	}
	return latest, nil
}

func (s *memStore) CreateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now().UTC()
	rule.CreatedAt, rule.UpdatedAt = now, now
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *memStore) GetRule(ctx context.Context, id uuid.UUID) (*models.RecurrenceRule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rule
	return &cp, nil
}

func (s *memStore) UpdateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	if _, ok := s.rules[rule.ID]; !ok {
		return ErrNotFound
	}
	cp := *rule
	cp.UpdatedAt = time.Now().UTC()
	s.rules[rule.ID] = &cp
	return nil
}

func (s *memStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *memStore) ListRulesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) ([]*models.RecurrenceRule, error) {
	var rules []*models.RecurrenceRule
	for _, rule := range s.rules {
		if rule.BaseRecurringEventID == baseEventID {
			cp := *rule
			rules = append(rules, &cp)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].RecurrenceStartDate.Before(rules[j].RecurrenceStartDate)
	})
	return rules, nil
}

func (s *memStore) CreateAttendees(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error {
	for _, id := range eventIDs {
		if s.attendees[id] == nil {
			s.attendees[id] = make(map[uuid.UUID]struct{})
		}
		s.attendees[id][userID] = struct{}{}
	}
	return nil
}

func (s *memStore) DeleteAttendees(ctx context.Context, eventIDs []uuid.UUID) error {
	for _, id := range eventIDs {
		delete(s.attendees, id)
	}
	return nil
}

func (s *memStore) PushUserEvents(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error {
	if s.lists[userID] == nil {
		s.lists[userID] = make(map[models.EventList][]uuid.UUID)
	}
	for _, list := range models.UserEventLists {
		s.lists[userID][list] = append(s.lists[userID][list], eventIDs...)
	}
	return nil
}

func (s *memStore) PullUserEvents(ctx context.Context, eventIDs []uuid.UUID) error {
	drop := make(map[uuid.UUID]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		drop[id] = struct{}{}
	}
	for userID, byList := range s.lists {
		for list, ids := range byList {
			var kept []uuid.UUID
			for _, id := range ids {
				if _, gone := drop[id]; !gone {
					kept = append(kept, id)
				}
			}
			s.lists[userID][list] = kept
		}
	}
	return nil
}

// instancesOfRule returns the live instances referencing the rule, sorted
// by start date.
func (s *memStore) instancesOfRule(ruleID uuid.UUID) []*models.Event {
	list, _ := s.ListInstances(context.Background(), InstanceFilter{
		RecurrenceRuleID:  &ruleID,
		IncludeExceptions: true,
	})
	return list
}
