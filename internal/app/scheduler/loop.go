// Package scheduler drives the periodic automation pass over every enabled
// kami and crafting setting.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autokami/internal/app/crafting"
	"autokami/internal/app/harvest"
	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultInterval = 60 * time.Second

type AgentEvaluator interface {
	Evaluate(ctx context.Context, profile kami.AgentProfile) (harvest.Outcome, error)
}

type CraftEvaluator interface {
	Evaluate(ctx context.Context, setting kami.CraftingSetting) (crafting.Report, error)
}

type TickReport struct {
	StartedAt     time.Time                  `json:"started_at"`
	Duration      time.Duration              `json:"duration"`
	Agents        int                        `json:"agents"`
	AgentFailures int                        `json:"agent_failures"`
	Corrections   int                        `json:"corrections"`
	Transitions   map[harvest.Transition]int `json:"transitions"`
	Settings      int                        `json:"settings"`
	SettingsDue   int                        `json:"settings_due"`
	CraftFailures int                        `json:"craft_failures"`
	Crafts        map[crafting.Result]int    `json:"crafts"`
}

// Loop owns the tick cadence. The next tick is scheduled only after both
// passes of the current one have settled.
type Loop struct {
	Profiles ports.ProfileRepository
	Settings ports.CraftingSettingRepository
	Agents   AgentEvaluator
	Crafts   CraftEvaluator
	Audit    ports.Auditor
	Metrics  ports.SchedulerMetrics
	Interval time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Run ticks immediately and then every Interval after a pass completes,
// until ctx ends.
func (l Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	l.Logger.Info().Dur("interval", interval).Msg("scheduler started")
	for {
		report := l.Tick(ctx)
		l.Logger.Debug().
			Int("agents", report.Agents).
			Int("agent_failures", report.AgentFailures).
			Int("settings_due", report.SettingsDue).
			Dur("took", report.Duration).
			Msg("tick complete")
		select {
		case <-ctx.Done():
			l.Logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Tick runs one pass. Per-unit failures, panics included, are isolated and
// reported through the audit log; Tick itself never fails.
func (l Loop) Tick(ctx context.Context) TickReport {
	started := l.now()
	report := TickReport{
		StartedAt:   started,
		Transitions: map[harvest.Transition]int{},
		Crafts:      map[crafting.Result]int{},
	}

	profiles, err := l.Profiles.ListAutomated(ctx)
	if err != nil {
		l.Logger.Error().Err(err).Msg("list automated kamis")
	}
	settings, err := l.Settings.ListEnabled(ctx)
	if err != nil {
		l.Logger.Error().Err(err).Msg("list enabled crafting settings")
	}
	report.Agents = len(profiles)
	report.Settings = len(settings)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.agentPass(ctx, profiles, &report)
	}()
	go func() {
		defer wg.Done()
		l.craftPass(ctx, settings, started, &report)
	}()
	wg.Wait()

	report.Duration = l.now().Sub(started)
	if l.Metrics != nil {
		l.Metrics.RecordTick(report.Duration, report.Agents, report.SettingsDue)
	}
	return report
}

// agentPass evaluates every profile concurrently. Goroutines never return an
// error to the group so one kami cannot cancel its siblings.
func (l Loop) agentPass(ctx context.Context, profiles []kami.AgentProfile, report *TickReport) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, p := range profiles {
		g.Go(func() error {
			out, err := l.evaluateAgent(ctx, p)
			if err != nil {
				l.agentFailed(ctx, p, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if out.Reconciliation != harvest.Unchanged {
				report.Corrections++
			}
			if err != nil {
				report.AgentFailures++
				return nil
			}
			if out.Transition != harvest.TransitionNone {
				report.Transitions[out.Transition]++
				if l.Metrics != nil {
					l.Metrics.RecordTransition(string(out.Transition))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (l Loop) evaluateAgent(ctx context.Context, p kami.AgentProfile) (out harvest.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating kami %s: %v", p.AgentID, r)
		}
	}()
	return l.Agents.Evaluate(ctx, p)
}

func (l Loop) agentFailed(ctx context.Context, p kami.AgentProfile, err error) {
	if l.Metrics != nil {
		l.Metrics.RecordAgentFailure()
	}
	l.Logger.Error().Err(err).Str("agent_id", p.AgentID).Str("operator", p.OperatorIdentity).Msg("kami evaluation failed")
	// The circuit breaker has already audited an unresolved harvest.
	if errors.Is(err, harvest.ErrHarvestUnresolved) {
		return
	}
	l.record(ctx, kami.AuditEvent{
		OperatorIdentity: p.OperatorIdentity,
		AgentID:          p.AgentID,
		Action:           kami.ActionAutomationError,
		Status:           kami.StatusError,
		Message:          err.Error(),
	})
}

// craftPass evaluates due settings one at a time.
func (l Loop) craftPass(ctx context.Context, settings []kami.CraftingSetting, now time.Time, report *TickReport) {
	for _, s := range settings {
		if !s.Due(now) {
			continue
		}
		report.SettingsDue++
		res, err := l.evaluateCraft(ctx, s)
		if err != nil {
			report.CraftFailures++
			l.Logger.Error().Err(err).Str("operator", s.OperatorIdentity).Int("recipe_id", s.RecipeID).Msg("crafting evaluation failed")
			l.record(ctx, kami.AuditEvent{
				OperatorIdentity: s.OperatorIdentity,
				Action:           kami.ActionAutomationError,
				Status:           kami.StatusError,
				Message:          err.Error(),
				Metadata:         map[string]any{"recipe_id": s.RecipeID},
			})
			continue
		}
		report.Crafts[res.Result]++
		if l.Metrics != nil {
			l.Metrics.RecordCraft(string(res.Result))
		}
	}
}

func (l Loop) evaluateCraft(ctx context.Context, s kami.CraftingSetting) (rep crafting.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic crafting for %s: %v", s.OperatorIdentity, r)
		}
	}()
	return l.Crafts.Evaluate(ctx, s)
}

func (l Loop) record(ctx context.Context, event kami.AuditEvent) {
	if l.Audit == nil {
		return
	}
	if err := l.Audit.Record(ctx, event); err != nil {
		l.Logger.Error().Err(err).Str("action", event.Action).Msg("record audit event")
	}
}

func (l Loop) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now()
}
