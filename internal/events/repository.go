package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
)

// Repository is the Postgres implementation of Store. All multi-write
// series operations go through InTx; the read helpers run on the pool
// directly.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the scan
// helpers can serve either side.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside one database transaction.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := fn(&txRepo{q: dbTx}); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

// GetEvent returns the event with the given id.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return getEvent(ctx, r.pool, id)
}

// ListOrganizationInstances returns the organization's bookable events
// whose start date falls inside [from, to], instances and standalone
// events alike. Base events are templates and never listed.
func (r *Repository) ListOrganizationInstances(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
		WHERE organization_id = $1 AND is_base_recurring_event = FALSE
		AND start_date >= $2 AND start_date <= $3
		ORDER BY start_date, id`
	rows, err := r.pool.Query(ctx, q, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CreateAttachment records an uploaded event attachment.
func (r *Repository) CreateAttachment(ctx context.Context, a *models.EventAttachment) error {
	const q = `INSERT INTO event_attachments (id, event_id, object_key, content_type)
		VALUES ($1, $2, $3, $4) RETURNING created_at`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, q, a.ID, a.EventID, a.ObjectKey, a.ContentType).Scan(&a.CreatedAt)
}

// ListAttachments returns the attachments of one event.
func (r *Repository) ListAttachments(ctx context.Context, eventID uuid.UUID) ([]models.EventAttachment, error) {
	const q = `SELECT id, event_id, object_key, content_type, created_at
		FROM event_attachments WHERE event_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.EventAttachment
	for rows.Next() {
		var a models.EventAttachment
		if err := rows.Scan(&a.ID, &a.EventID, &a.ObjectKey, &a.ContentType, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UnboundedRules returns never-ending rules whose materialization has not
// reached the horizon yet. The background worker extends these.
func (r *Repository) UnboundedRules(ctx context.Context, horizon time.Time) ([]*models.RecurrenceRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM recurrence_rules
		WHERE recurrence_end_date IS NULL AND count IS NULL AND latest_instance_date < $1
		ORDER BY latest_instance_date`
	rows, err := r.pool.Query(ctx, q, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// txRepo implements Tx over one pgx transaction.
type txRepo struct {
	q querier
}

const eventColumns = `id, organization_id, creator_id, title, description, location,
	all_day, is_public, is_registerable, start_date, end_date, start_time, end_time,
	recurring, is_base_recurring_event, is_recurring_event_exception,
	recurrence_rule_id, base_recurring_event_id, created_at, updated_at`

const ruleColumns = `id, organization_id, base_recurring_event_id, rule_string,
	frequency, recurrence_interval, by_day, by_month, by_month_day, count,
	recurrence_start_date, recurrence_end_date, latest_instance_date, created_at, updated_at`

func (t *txRepo) CreateEvent(ctx context.Context, ev *models.Event) error {
	const q = `INSERT INTO events (id, organization_id, creator_id, title, description, location,
		all_day, is_public, is_registerable, start_date, end_date, start_time, end_time,
		recurring, is_base_recurring_event, is_recurring_event_exception,
		recurrence_rule_id, base_recurring_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return t.q.QueryRow(ctx, q,
		ev.ID, ev.OrganizationID, ev.CreatorID, ev.Title, ev.Description, ev.Location,
		ev.AllDay, ev.IsPublic, ev.IsRegisterable, ev.StartDate, ev.EndDate, ev.StartTime, ev.EndTime,
		ev.Recurring, ev.IsBaseRecurringEvent, ev.IsRecurringEventException,
		ev.RecurrenceRuleID, ev.BaseRecurringEventID,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

func (t *txRepo) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return getEvent(ctx, t.q, id)
}

func (t *txRepo) UpdateEvent(ctx context.Context, id uuid.UUID, edit EventEdit) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if edit.Title != nil {
		add("title", *edit.Title)
	}
	if edit.Description != nil {
		add("description", *edit.Description)
	}
	if edit.Location != nil {
		add("location", *edit.Location)
	}
	if edit.AllDay != nil {
		add("all_day", *edit.AllDay)
	}
	if edit.IsPublic != nil {
		add("is_public", *edit.IsPublic)
	}
	if edit.IsRegisterable != nil {
		add("is_registerable", *edit.IsRegisterable)
	}
	if edit.StartDate != nil {
		add("start_date", edit.StartDate.UTC())
	}
	if edit.EndDate != nil {
		add("end_date", edit.EndDate.UTC())
	}
	if edit.StartTime != nil {
		add("start_time", *edit.StartTime)
	}
	if edit.EndTime != nil {
		add("end_time", *edit.EndTime)
	}
	if edit.MarkException != nil {
		add("is_recurring_event_exception", *edit.MarkException)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	q := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := t.q.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SaveEvent(ctx context.Context, ev *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, location = $4,
		all_day = $5, is_public = $6, is_registerable = $7,
		start_date = $8, end_date = $9, start_time = $10, end_time = $11,
		updated_at = now()
		WHERE id = $1`
	tag, err := t.q.Exec(ctx, q,
		ev.ID, ev.Title, ev.Description, ev.Location,
		ev.AllDay, ev.IsPublic, ev.IsRegisterable,
		ev.StartDate, ev.EndDate, ev.StartTime, ev.EndTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) CreateInstances(ctx context.Context, instances []*models.Event) error {
	for _, inst := range instances {
		if err := t.CreateEvent(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) ListInstances(ctx context.Context, f InstanceFilter) ([]*models.Event, error) {
	var args []any
	where := instanceWhere(f, &args)
	q := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY start_date, id`
	rows, err := t.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (t *txRepo) BulkUpdateInstances(ctx context.Context, f InstanceFilter, fields FieldUpdate) (int, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Description != nil {
		add("description", *fields.Description)
	}
	if fields.Location != nil {
		add("location", *fields.Location)
	}
	if fields.AllDay != nil {
		add("all_day", *fields.AllDay)
	}
	if fields.IsPublic != nil {
		add("is_public", *fields.IsPublic)
	}
	if fields.IsRegisterable != nil {
		add("is_registerable", *fields.IsRegisterable)
	}
	if fields.StartTime != nil {
		add("start_time", *fields.StartTime)
	}
	if fields.EndTime != nil {
		add("end_time", *fields.EndTime)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at = now()")

	where := instanceWhere(f, &args)
	q := fmt.Sprintf("UPDATE events SET %s WHERE %s", strings.Join(sets, ", "), where)
	tag, err := t.q.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepo) DeleteInstances(ctx context.Context, f InstanceFilter) ([]uuid.UUID, error) {
	var args []any
	where := instanceWhere(f, &args)
	rows, err := t.q.Query(ctx, `DELETE FROM events WHERE `+where+` RETURNING id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *txRepo) CountInstancesByRule(ctx context.Context, ruleID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM events
		WHERE recurrence_rule_id = $1 AND is_base_recurring_event = FALSE`
	var n int
	err := t.q.QueryRow(ctx, q, ruleID).Scan(&n)
	return n, err
}

func (t *txRepo) CountInstancesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM events
		WHERE base_recurring_event_id = $1 AND is_base_recurring_event = FALSE`
	var n int
	err := t.q.QueryRow(ctx, q, baseEventID).Scan(&n)
	return n, err
}

func (t *txRepo) LatestInstanceStart(ctx context.Context, ruleID uuid.UUID) (*time.Time, error) {
	const q = `SELECT max(start_date) FROM events
		WHERE recurrence_rule_id = $1 AND is_base_recurring_event = FALSE`
	var latest *time.Time
	if err := t.q.QueryRow(ctx, q, ruleID).Scan(&latest); err != nil {
		return nil, err
	}
	return latest, nil
}

func (t *txRepo) CreateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	const q = `INSERT INTO recurrence_rules (id, organization_id, base_recurring_event_id, rule_string,
		frequency, recurrence_interval, by_day, by_month, by_month_day, count,
		recurrence_start_date, recurrence_end_date, latest_instance_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	return t.q.QueryRow(ctx, q,
		rule.ID, rule.OrganizationID, rule.BaseRecurringEventID, rule.RuleString,
		rule.Frequency, rule.Interval, rule.ByDay, rule.ByMonth, rule.ByMonthDay, rule.Count,
		rule.RecurrenceStartDate, rule.RecurrenceEndDate, rule.LatestInstanceDate,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (t *txRepo) GetRule(ctx context.Context, id uuid.UUID) (*models.RecurrenceRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM recurrence_rules WHERE id = $1`
	rule, err := scanRule(t.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

func (t *txRepo) UpdateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	const q = `UPDATE recurrence_rules SET rule_string = $2, frequency = $3, recurrence_interval = $4,
		by_day = $5, by_month = $6, by_month_day = $7, count = $8,
		recurrence_start_date = $9, recurrence_end_date = $10, latest_instance_date = $11,
		updated_at = now()
		WHERE id = $1`
	tag, err := t.q.Exec(ctx, q,
		rule.ID, rule.RuleString, rule.Frequency, rule.Interval,
		rule.ByDay, rule.ByMonth, rule.ByMonthDay, rule.Count,
		rule.RecurrenceStartDate, rule.RecurrenceEndDate, rule.LatestInstanceDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) ListRulesByBaseEvent(ctx context.Context, baseEventID uuid.UUID) ([]*models.RecurrenceRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM recurrence_rules
		WHERE base_recurring_event_id = $1 ORDER BY recurrence_start_date`
	rows, err := t.q.Query(ctx, q, baseEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (t *txRepo) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM recurrence_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) CreateAttendees(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error {
	const q = `INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING`
	for _, id := range eventIDs {
		if _, err := t.q.Exec(ctx, q, id, userID); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) DeleteAttendees(ctx context.Context, eventIDs []uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM event_attendees WHERE event_id = ANY($1)`, eventIDs)
	return err
}

func (t *txRepo) PushUserEvents(ctx context.Context, userID uuid.UUID, eventIDs []uuid.UUID) error {
	const q = `INSERT INTO user_event_lists (user_id, event_id, list)
		SELECT $1, unnest($2::uuid[]), $3
		ON CONFLICT DO NOTHING`
	for _, list := range []models.EventList{models.EventListAdmin, models.EventListCreated, models.EventListRegistered} {
		if _, err := t.q.Exec(ctx, q, userID, eventIDs, list); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) PullUserEvents(ctx context.Context, eventIDs []uuid.UUID) error {
	_, err := t.q.Exec(ctx, `DELETE FROM user_event_lists WHERE event_id = ANY($1)`, eventIDs)
	return err
}

func getEvent(ctx context.Context, q querier, id uuid.UUID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	ev, err := scanEvent(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// instanceWhere builds the WHERE clause selecting materialized instances,
// appending its bind values to args.
func instanceWhere(f InstanceFilter, args *[]any) string {
	conds := []string{"recurring = TRUE", "is_base_recurring_event = FALSE"}
	bind := func(cond string, v any) {
		*args = append(*args, v)
		conds = append(conds, fmt.Sprintf(cond, len(*args)))
	}
	if f.RecurrenceRuleID != nil {
		bind("recurrence_rule_id = $%d", *f.RecurrenceRuleID)
	}
	if f.BaseRecurringEventID != nil {
		bind("base_recurring_event_id = $%d", *f.BaseRecurringEventID)
	}
	if f.StartDateOnOrAfter != nil {
		bind("start_date >= $%d", f.StartDateOnOrAfter.UTC())
	}
	if !f.IncludeExceptions {
		conds = append(conds, "is_recurring_event_exception = FALSE")
	}
	return strings.Join(conds, " AND ")
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var ev models.Event
	err := row.Scan(
		&ev.ID, &ev.OrganizationID, &ev.CreatorID, &ev.Title, &ev.Description, &ev.Location,
		&ev.AllDay, &ev.IsPublic, &ev.IsRegisterable, &ev.StartDate, &ev.EndDate, &ev.StartTime, &ev.EndTime,
		&ev.Recurring, &ev.IsBaseRecurringEvent, &ev.IsRecurringEventException,
		&ev.RecurrenceRuleID, &ev.BaseRecurringEventID, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanEvents(rows pgx.Rows) ([]*models.Event, error) {
	var list []*models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

func scanRule(row pgx.Row) (*models.RecurrenceRule, error) {
	var rule models.RecurrenceRule
	err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.BaseRecurringEventID, &rule.RuleString,
		&rule.Frequency, &rule.Interval, &rule.ByDay, &rule.ByMonth, &rule.ByMonthDay, &rule.Count,
		&rule.RecurrenceStartDate, &rule.RecurrenceEndDate, &rule.LatestInstanceDate,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
