package swarm

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AgentState is one agent's sampled position. Agents with an ID below the
// backbone count are backbone nodes.
type AgentState struct {
	ID       int  `json:"id"`
	Position Vec3 `json:"position"`
	Backbone bool `json:"backbone"`
}
