package socialphase

import "testing"

// S4 — phase hysteresis.
func TestScenarioHysteresisSweep(t *testing.T) {
	space := DefaultSpace()
	coherenceSweep := []float64{0.40, 0.50, 0.58, 0.50, 0.40, 0.34}
	want := []Phase{ShyObserver, ShyObserver, QuietlyBeloved, QuietlyBeloved, QuietlyBeloved, ShyObserver}

	phase := ShyObserver
	for i, c := range coherenceSweep {
		phase = Classify(c, 0.1, phase, space)
		if phase != want[i] {
			t.Fatalf("step %d: coherence=%v got %v want %v", i, c, phase, want[i])
		}
	}
}

// Invariant 8: staying High when value drops only into (lo, hi].
func TestHysteresisStableWithinBand(t *testing.T) {
	space := DefaultSpace()
	phase := Classify(0.90, 0.1, QuietlyBeloved, space) // stays high
	if phase != QuietlyBeloved {
		t.Fatalf("expected QuietlyBeloved, got %v", phase)
	}
	phase = Classify(0.40, 0.1, phase, space) // drops into (0.35, 0.55], must stay High
	if phase != QuietlyBeloved {
		t.Fatalf("expected phase to stay High within (lo,hi], got %v", phase)
	}
	phase = Classify(0.30, 0.1, phase, space) // now below lo, must drop
	if phase != ShyObserver {
		t.Fatalf("expected drop below lo, got %v", phase)
	}
}

// Invariant 9: expression_scale ordering.
func TestExpressionScaleOrdering(t *testing.T) {
	qb := QuietlyBeloved.ExpressionScale()
	pg := ProtectiveGuardian.ExpressionScale()
	so := ShyObserver.ExpressionScale()
	sr := StartledRetreat.ExpressionScale()
	if !(qb > pg && pg > so && so > sr) {
		t.Fatalf("expected QB > PG > SO > SR, got QB=%v PG=%v SO=%v SR=%v", qb, pg, so, sr)
	}
}

func TestLEDTints(t *testing.T) {
	cases := map[Phase]RGB{
		ShyObserver:        {60, 120, 200},
		StartledRetreat:    {220, 40, 40},
		QuietlyBeloved:     {240, 220, 180},
		ProtectiveGuardian: {240, 180, 60},
	}
	for phase, want := range cases {
		if got := phase.LEDTint(); got != want {
			t.Fatalf("phase %v: got %+v want %+v", phase, got, want)
		}
	}
}

func TestAllFourQuadrants(t *testing.T) {
	space := DefaultSpace()
	if p := Classify(0.1, 0.1, "", space); p != ShyObserver {
		t.Fatalf("expected ShyObserver, got %v", p)
	}
	if p := Classify(0.1, 0.9, "", space); p != StartledRetreat {
		t.Fatalf("expected StartledRetreat, got %v", p)
	}
	if p := Classify(0.9, 0.1, "", space); p != QuietlyBeloved {
		t.Fatalf("expected QuietlyBeloved, got %v", p)
	}
	if p := Classify(0.9, 0.9, "", space); p != ProtectiveGuardian {
		t.Fatalf("expected ProtectiveGuardian, got %v", p)
	}
}
