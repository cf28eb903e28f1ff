package risk

// StepFunction is a survival curve: survival probability Y[i] at elapsed time
// X[i], with X strictly increasing and Y non-increasing.
type StepFunction struct {
	X []float64
	Y []float64
}

// SurvivalAt evaluates the curve at t with linear interpolation between
// breakpoints. Left of the first breakpoint the probability clamps to 1.0,
// right of the last it clamps to the final known value. This boundary policy
// is load-bearing for reproducible forecasts; do not change it.
func (f StepFunction) SurvivalAt(t float64) float64 {
	n := len(f.X)
	if n == 0 {
		return 1.0
	}
	if t < f.X[0] {
		return 1.0
	}
	if t >= f.X[n-1] {
		return f.Y[n-1]
	}

	// Find the bracketing breakpoints.
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if f.X[mid] <= t {
			lo = mid
		} else {
			hi = mid
		}
	}

	x0, x1 := f.X[lo], f.X[hi]
	y0, y1 := f.Y[lo], f.Y[hi]
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(t-x0)/(x1-x0)
}

// Model is a fitted survival model. It is owned exclusively by the snapshot
// that produced it and discarded when superseded.
type Model interface {
	// SurvivalFunction returns the survival curve for one feature vector.
	SurvivalFunction(features []float64) (StepFunction, error)
}

// Backend fits survival models. The fitting algorithm is an external
// capability behind this contract; the engine never looks inside it.
type Backend interface {
	// Fit trains a model on a feature matrix, per-row durations (hours) and
	// per-row observed-event flags. Rows are imputed before Fit is called.
	Fit(features [][]float64, durations []float64, events []bool) (Model, error)
}
