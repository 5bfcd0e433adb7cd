package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

const (
	// TopicRoutingTable carries the adjacency matrix once per cycle.
	TopicRoutingTable = "network.routing_table"

	TopicAgentStateAll = "swarm.agent.*.state"
	TopicEventsCycle   = "events.cycle.*"
)

func TopicAgentState(agentID int) string {
	return fmt.Sprintf("swarm.agent.%d.state", agentID)
}

func TopicCycleEvent(status string) string {
	return fmt.Sprintf("events.cycle.%s", status)
}
