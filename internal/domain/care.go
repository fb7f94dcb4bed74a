package domain

// CareLevel is the traffic-light status of projected intensive care demand.
type CareLevel string

const (
	CareUnknown CareLevel = "unknown" // no capacity configured
	CareGreen   CareLevel = "green"   // below minimum capacity
	CareYellow  CareLevel = "yellow"  // between minimum and maximum capacity
	CareRed     CareLevel = "red"     // at or above maximum capacity
)

// DefaultCareShare is the assumed fraction of cases needing ventilation.
const DefaultCareShare = 0.05

// Capacity is the ventilation capacity range of a region.
type Capacity struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Level classifies a demand value against the capacity range.
func (c *Capacity) Level(demand float64) CareLevel {
	switch {
	case c == nil:
		return CareUnknown
	case demand < c.Min:
		return CareGreen
	case demand < c.Max:
		return CareYellow
	default:
		return CareRed
	}
}

// DemandPoint is the projected care demand for one future or current day.
type DemandPoint struct {
	Day       int       `json:"day"`
	Projected float64   `json:"projected_cases"`
	Demand    float64   `json:"demand"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
	Level     CareLevel `json:"level"`
}

// CareDemand projects share of the fitted case curve onto days, with the
// one-sigma band of the fit, and classifies each day against capacity.
func CareDemand(fit FitResult, days []int, share float64, capacity *Capacity) []DemandPoint {
	out := make([]DemandPoint, len(days))
	for i, d := range days {
		x := float64(d)
		projected := fit.Predict(x)
		lo, hi := fit.Band(x)
		demand := share * projected
		out[i] = DemandPoint{
			Day:       d,
			Projected: projected,
			Demand:    demand,
			Lower:     share * lo,
			Upper:     share * hi,
			Level:     capacity.Level(demand),
		}
	}
	return out
}
