package replay

// RetrainTrigger names why a replay day retrained its model version,
// mirroring step 2's three trigger kinds.
type RetrainTrigger string

const (
	TriggerInitial   RetrainTrigger = "initial"
	TriggerScheduled RetrainTrigger = "scheduled"
	TriggerDrift     RetrainTrigger = "drift"
	TriggerNone      RetrainTrigger = ""
)

// RetrainPolicy decides, for each replay day, whether to retrain and
// why. Day and lastRetrainDay are both zero-based indices into the
// replay calendar, never wall-clock time, so the decision is a pure
// function of the simulator's own loop state.
type RetrainPolicy struct {
	ScheduleDays       int
	DriftMAPEThreshold float64
}

// ShouldRetrain reports the trigger for day, given the index of the
// last retrain and the current rolling-14-day MAPE. Day 0 always
// retrains (initial). Once ScheduleDays have elapsed since the last
// retrain, a scheduled retrain fires regardless of drift. Otherwise, a
// drift retrain fires when rollingMAPE exceeds DriftMAPEThreshold (a
// non-positive threshold disables drift-triggered retraining).
func (p RetrainPolicy) ShouldRetrain(day, lastRetrainDay int, rollingMAPE float64) (RetrainTrigger, bool) {
	if lastRetrainDay < 0 {
		return TriggerInitial, true
	}
	schedule := p.ScheduleDays
	if schedule <= 0 {
		schedule = 7
	}
	if day-lastRetrainDay >= schedule {
		return TriggerScheduled, true
	}
	if p.DriftMAPEThreshold > 0 && rollingMAPE > p.DriftMAPEThreshold {
		return TriggerDrift, true
	}
	return TriggerNone, false
}
