package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/events"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/queue"
)

// HorizonProcessor keeps never-ending series materialized ahead of time.
// A scanner pass finds rules whose latest instance is closing in on now
// and enqueues one extension job per rule; the worker loop materializes
// the next stretch of instances for each job.
type HorizonProcessor struct {
	repo      *events.Repository
	generator *events.Generator
	expander  *recurrence.Expander
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewHorizonProcessor creates a horizon extension processor.
func NewHorizonProcessor(repo *events.Repository, generator *events.Generator, expander *recurrence.Expander, q *queue.Queue, logger *zap.Logger) *HorizonProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HorizonProcessor{repo: repo, generator: generator, expander: expander, queue: q, logger: logger}
}

// Scan enqueues an extension job for every unbounded rule whose
// materialized instances run out within the next month.
func (p *HorizonProcessor) Scan(ctx context.Context) error {
	threshold := time.Now().UTC().AddDate(0, 1, 0)
	rules, err := p.repo.UnboundedRules(ctx, threshold)
	if err != nil {
		return fmt.Errorf("list unbounded rules: %w", err)
	}
	for _, rule := range rules {
		err := p.queue.EnqueueExtendHorizon(ctx, queue.ExtendHorizonPayload{RecurrenceRuleID: rule.ID})
		if err != nil {
			p.logger.Warn("enqueue extension failed", zap.Error(err), zap.String("recurrence_rule_id", rule.ID.String()))
		}
	}
	if len(rules) > 0 {
		p.logger.Info("scheduled horizon extensions", zap.Int("rules", len(rules)))
	}
	return nil
}

// Process executes one horizon extension job: materialize the rule's
// occurrences between its latest instance and the fresh horizon.
func (p *HorizonProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExtendHorizon {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExtendHorizonPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	return p.repo.InTx(ctx, func(tx events.Tx) error {
		rule, err := tx.GetRule(ctx, payload.RecurrenceRuleID)
		if err != nil {
			return fmt.Errorf("load rule: %w", err)
		}
		base, err := tx.GetEvent(ctx, rule.BaseRecurringEventID)
		if err != nil {
			return fmt.Errorf("load base recurring event: %w", err)
		}

		horizon := p.expander.Horizon(time.Now())
		dates, err := p.expander.ExpandFrom(rule.RuleString, rule.RecurrenceStartDate, rule.LatestInstanceDate, horizon)
		if err != nil {
			return fmt.Errorf("expand: %w", err)
		}
		if len(dates) == 0 {
			return nil
		}

		tpl := events.EventTemplate{
			Title:          base.Title,
			Description:    base.Description,
			Location:       base.Location,
			AllDay:         base.AllDay,
			IsPublic:       base.IsPublic,
			IsRegisterable: base.IsRegisterable,
			StartDate:      base.StartDate,
			EndDate:        base.EndDate,
			StartTime:      base.StartTime,
			EndTime:        base.EndTime,
		}
		instances, err := p.generator.Materialize(ctx, tx, tpl, dates, rule.ID, base.ID, base.OrganizationID, base.CreatorID)
		if err != nil {
			return err
		}

		rule.LatestInstanceDate = dates[len(dates)-1]
		if err := tx.UpdateRule(ctx, rule); err != nil {
			return fmt.Errorf("update rule: %w", err)
		}

		p.logger.Info("extended materialization horizon",
			zap.String("recurrence_rule_id", rule.ID.String()),
			zap.Int("instances", len(instances)),
			zap.Time("latest_instance_date", rule.LatestInstanceDate),
		)
		return nil
	})
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *HorizonProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("horizon worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

// RunScanner periodically scans for rules approaching their horizon.
func (p *HorizonProcessor) RunScanner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := p.Scan(ctx); err != nil {
		p.logger.Warn("scan failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("horizon scanner stopping")
			return
		case <-ticker.C:
			if err := p.Scan(ctx); err != nil {
				p.logger.Warn("scan failed", zap.Error(err))
			}
		}
	}
}
