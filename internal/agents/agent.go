// Path: internal/agents/agent.go

// Package agents holds the pipeline's cycle entry points. Each agent runs
// one bounded cycle per invocation: claim a batch, process its items
// strictly sequentially, report a summary. An empty batch is a normal idle
// cycle, not an error. Hard rate-limit termination errors pass through
// every agent untouched.
package agents

import (
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
)

// publish sends a cycle summary over the broker, if one is attached.
func publish(b *events.Broker, agent string, summary any) {
	if b != nil {
		b.Publish(events.SummaryTopic(agent), summary)
	}
}
