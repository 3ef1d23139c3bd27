package models

// Frequency is the native sampling cadence of a raw series.
type Frequency string

const (
	Daily     Frequency = "D"
	Weekly    Frequency = "W"
	Monthly   Frequency = "M"
	Quarterly Frequency = "Q"
	Annual    Frequency = "A"
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Annual:
		return "annual"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the known cadences.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Annual:
		return true
	}
	return false
}
