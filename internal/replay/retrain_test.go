package replay

import "testing"

func TestRetrainPolicy_Day0AlwaysRetrains(t *testing.T) {
	policy := RetrainPolicy{ScheduleDays: 7}
	trigger, retrain := policy.ShouldRetrain(0, -1, 0)
	if !retrain || trigger != TriggerInitial {
		t.Fatalf("want initial retrain, got trigger=%v retrain=%v", trigger, retrain)
	}
}

func TestRetrainPolicy_ScheduledRetrainAfterInterval(t *testing.T) {
	policy := RetrainPolicy{ScheduleDays: 7}
	trigger, retrain := policy.ShouldRetrain(7, 0, 0)
	if !retrain || trigger != TriggerScheduled {
		t.Fatalf("want scheduled retrain, got trigger=%v retrain=%v", trigger, retrain)
	}
}

func TestRetrainPolicy_NoRetrainWithinScheduleAndBelowDrift(t *testing.T) {
	policy := RetrainPolicy{ScheduleDays: 7, DriftMAPEThreshold: 0.3}
	trigger, retrain := policy.ShouldRetrain(3, 0, 0.1)
	if retrain || trigger != TriggerNone {
		t.Fatalf("want no retrain, got trigger=%v retrain=%v", trigger, retrain)
	}
}

func TestRetrainPolicy_DriftRetrainWhenRollingMAPEExceedsThreshold(t *testing.T) {
	policy := RetrainPolicy{ScheduleDays: 7, DriftMAPEThreshold: 0.3}
	trigger, retrain := policy.ShouldRetrain(3, 0, 0.45)
	if !retrain || trigger != TriggerDrift {
		t.Fatalf("want drift retrain, got trigger=%v retrain=%v", trigger, retrain)
	}
}

func TestRetrainPolicy_DriftDisabledWhenThresholdNonPositive(t *testing.T) {
	policy := RetrainPolicy{ScheduleDays: 7, DriftMAPEThreshold: 0}
	trigger, retrain := policy.ShouldRetrain(3, 0, 10)
	if retrain || trigger != TriggerNone {
		t.Fatalf("want no retrain with drift disabled, got trigger=%v retrain=%v", trigger, retrain)
	}
}
