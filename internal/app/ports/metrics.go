package ports

import "time"

type SchedulerMetrics interface {
	RecordTick(duration time.Duration, agents, settings int)
	RecordTransition(action string)
	RecordAgentFailure()
	RecordCraft(result string)
}
