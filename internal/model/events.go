package model

// Event names published on <topic>/event/<name>. These match the topics
// the dashboard and companion tooling already subscribe to.
const (
	EventStartingUp      = "startingUp"
	EventShuttingDown    = "shuttingDown"
	EventWateringStarted = "wateringStarted"
	EventWateringSuccess = "wateringSuccess"
	EventWateringFailure = "wateringFailure"
	EventWateringRunaway = "wateringRunaway"
	EventWateringSkipped = "wateringSkipped"
)

// CycleOutcome summarizes one watering cycle. Started means the valve
// reported on; Stopped means the cycle was cut short by a manual stop or
// shutdown; Succeeded means the valve verified off at the end.
type CycleOutcome struct {
	CycleID   string
	Started   bool
	Stopped   bool
	Succeeded bool
}

// Event returns the single terminal notification event for the cycle.
func (o CycleOutcome) Event() string {
	switch {
	case !o.Started:
		return EventWateringFailure
	case !o.Succeeded:
		return EventWateringRunaway
	default:
		return EventWateringSuccess
	}
}
