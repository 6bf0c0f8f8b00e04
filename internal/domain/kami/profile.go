package kami

import (
	"strconv"
	"time"
)

const (
	DefaultHarvestMinutes     = 60
	DefaultRestMinutes        = 30
	DefaultMinHealthThreshold = 20
)

// NewAgentProfile returns the profile created on first reference to an agent.
// Every automation switch starts off.
func NewAgentProfile(agentID, operator string) AgentProfile {
	return AgentProfile{
		AgentID:            agentID,
		OperatorIdentity:   operator,
		Activity:           ActivityResting,
		HarvestMinutes:     DefaultHarvestMinutes,
		RestMinutes:        DefaultRestMinutes,
		MinHealthThreshold: DefaultMinHealthThreshold,
	}
}

func (p AgentProfile) VitalityLow(vitality int) bool {
	return vitality < p.MinHealthThreshold
}

// HarvestElapsed reports whether the configured harvest duration has passed.
// A harvesting profile without a start time is treated as overdue.
func (p AgentProfile) HarvestElapsed(now time.Time) bool {
	if p.LastHarvestStart == nil {
		return true
	}
	return now.Sub(*p.LastHarvestStart) >= minutes(p.HarvestMinutes)
}

// RestElapsed treats a never-collected agent as resting since the epoch.
func (p AgentProfile) RestElapsed(now time.Time) bool {
	last := time.Unix(0, 0)
	if p.LastCollect != nil {
		last = *p.LastCollect
	}
	return now.Sub(last) >= minutes(p.RestMinutes)
}

func (p *AgentProfile) MarkHarvesting(now time.Time) {
	t := now
	p.Activity = ActivityHarvesting
	p.LastHarvestStart = &t
	p.TotalHarvests++
}

func (p *AgentProfile) MarkResting(now time.Time) {
	t := now
	p.Activity = ActivityResting
	p.LastCollect = &t
	p.TotalRests++
}

// SyncActivity overwrites the cached activity with the ledger's view without
// touching counters.
func (p *AgentProfile) SyncActivity(ledger Activity, now time.Time) {
	p.Activity = ledger
	if ledger == ActivityHarvesting && p.LastHarvestStart == nil {
		t := now
		p.LastHarvestStart = &t
	}
}

func (p *AgentProfile) EnableAutomation(now time.Time) {
	if p.AutoHarvestEnabled && p.AutomationStartedAt != nil {
		return
	}
	t := now
	p.AutoHarvestEnabled = true
	p.AutomationStartedAt = &t
}

func (p *AgentProfile) DisableAutomation() {
	p.AutoHarvestEnabled = false
	p.AutomationStartedAt = nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func formatFloatID(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
