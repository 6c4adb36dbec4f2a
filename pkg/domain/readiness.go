package domain

import "fmt"

// Readiness is the availability state of a service. Transitions are
// monotonic: pending → ready or pending → failed.
type Readiness int32

const (
	ReadinessPending Readiness = iota
	ReadinessReady
	ReadinessFailed
)

var readinessNames = map[Readiness]string{
	ReadinessPending: "pending",
	ReadinessReady:   "ready",
	ReadinessFailed:  "failed",
}

func (r Readiness) String() string {
	if name, ok := readinessNames[r]; ok {
		return name
	}
	return fmt.Sprintf("readiness(%d)", int32(r))
}

// Terminal reports whether no further transition is allowed.
func (r Readiness) Terminal() bool {
	return r == ReadinessReady || r == ReadinessFailed
}

// CanTransition reports whether moving from r to next is allowed.
func (r Readiness) CanTransition(next Readiness) bool {
	return r == ReadinessPending && next.Terminal()
}

func (r Readiness) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Readiness) UnmarshalText(text []byte) error {
	for value, name := range readinessNames {
		if name == string(text) {
			*r = value
			return nil
		}
	}
	return fmt.Errorf("unknown readiness %q", text)
}

// Liveness is the lifecycle state of a node.
type Liveness int32

const (
	LivenessStarting Liveness = iota
	LivenessRunning
	LivenessStopped
)

func (l Liveness) String() string {
	switch l {
	case LivenessStarting:
		return "starting"
	case LivenessRunning:
		return "running"
	case LivenessStopped:
		return "stopped"
	}
	return fmt.Sprintf("liveness(%d)", int32(l))
}

// ServiceRecord is the mesh-wide directory entry of a service.
type ServiceRecord struct {
	Name         string    `json:"name"`
	NodeID       string    `json:"node_id"`
	Actions      []string  `json:"actions"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Readiness    Readiness `json:"readiness"`
}

// ReadinessEvent is published whenever a service reaches a terminal readiness.
type ReadinessEvent struct {
	Service   string    `json:"service"`
	NodeID    string    `json:"node_id"`
	Readiness Readiness `json:"readiness"`
}
