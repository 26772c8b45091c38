package v2vsim

import (
	"math"
	"testing"
)

func TestLogDistancePathlossReference(t *testing.T) {
	model := NewLogDistancePathloss()
	// at the reference distance the loss equals the reference loss
	if loss := model.LOS(10); math.Abs(loss-63.9) > 1e-9 {
		t.Errorf("LOS loss at 10 m must be 63.9 dB, but got %f", loss)
	}
	if loss := model.OLOS(10); math.Abs(loss-72.3) > 1e-9 {
		t.Errorf("OLOS loss at 10 m must be 72.3 dB, but got %f", loss)
	}
	if loss := model.NLOSOrthogonal(10, 10); math.Abs(loss-84.5) > 1e-9 {
		t.Errorf("NLOS loss with 10 m legs must be 84.5 dB, but got %f", loss)
	}
}

func TestLogDistancePathlossDecade(t *testing.T) {
	model := NewLogDistancePathloss()
	// one decade adds 10 * exponent dB
	if loss := model.LOS(100); math.Abs(loss-(63.9+18.1)) > 1e-9 {
		t.Errorf("LOS loss at 100 m must be 82.0 dB, but got %f", loss)
	}
	if loss := model.OLOS(100); math.Abs(loss-(72.3+19.3)) > 1e-9 {
		t.Errorf("OLOS loss at 100 m must be 91.6 dB, but got %f", loss)
	}
	if loss := model.NLOSOrthogonal(100, 10); math.Abs(loss-(84.5+26.9)) > 1e-9 {
		t.Errorf("NLOS loss with 100 m and 10 m legs must be 111.4 dB, but got %f", loss)
	}
}

func TestLogDistancePathlossMonotonic(t *testing.T) {
	model := NewLogDistancePathloss()
	prev := math.Inf(-1)
	for _, dist := range []float64{1, 5, 10, 50, 100, 250, 500} {
		loss := model.LOS(dist)
		if loss < prev {
			t.Errorf("LOS loss must not decrease with distance, but %f m gave %f after %f", dist, loss, prev)
		}
		prev = loss
	}
	if model.OLOS(50) <= model.LOS(50) {
		t.Errorf("Obstructed links must lose more than clear ones at equal distance")
	}
}

func TestLogDistancePathlossClipping(t *testing.T) {
	model := NewLogDistancePathloss()
	// distances below the minimum clip instead of blowing up the logarithm
	if loss := model.LOS(0); loss != model.LOS(1) {
		t.Errorf("Zero distance must clip to the minimum distance, but got %f vs %f", loss, model.LOS(1))
	}
	if loss := model.NLOSOrthogonal(0, 100); loss != model.NLOSOrthogonal(1, 100) {
		t.Errorf("Zero leg must clip to the minimum distance, but got %f vs %f", loss, model.NLOSOrthogonal(1, 100))
	}
}
