package models

// Prediction is a time-to-failure forecast for a single device.
//
// TimeToThresholdH is relative to the device's current elapsed time. When the
// risk threshold is never reached inside the projection window the value is
// capped at the window length; that is a sentinel outcome, not an error.
type Prediction struct {
	Device           string  `json:"device"`
	TimeToThresholdH float64 `json:"time_to_threshold_hours"`
	Risk             float64 `json:"risk"`
	CurrentElapsedH  float64 `json:"current_time_elapsed"`
}

// ThresholdReached reports whether the forecast hit the risk threshold inside
// the projection window of maxTimeHours.
func (p *Prediction) ThresholdReached(maxTimeHours float64) bool {
	return p.TimeToThresholdH < maxTimeHours
}

// CurvePoint is one sample of a device's failure-risk curve.
type CurvePoint struct {
	ElapsedDays float64 `json:"elapsed_days"`
	RiskPercent float64 `json:"risk_percent"`
}

// RiskBucket classifies days-to-threshold into operational urgency buckets.
type RiskBucket string

const (
	RiskCritical RiskBucket = "critical" // < 7 days
	RiskHigh     RiskBucket = "high"     // < 30 days
	RiskMedium   RiskBucket = "medium"   // < 90 days
	RiskLow      RiskBucket = "low"
)

func BucketForDays(days float64) RiskBucket {
	switch {
	case days < 7:
		return RiskCritical
	case days < 30:
		return RiskHigh
	case days < 90:
		return RiskMedium
	default:
		return RiskLow
	}
}
