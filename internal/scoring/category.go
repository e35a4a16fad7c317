package scoring

// Category is the risk label derived from a trust score.
type Category string

const (
	CategorySafe         Category = "Safe"
	CategorySuspicious   Category = "Suspicious"
	CategoryHighRisk     Category = "High Risk"
	CategoryCriticalRisk Category = "Critical Risk"
	// CategoryUnknown is reserved for QR images that could not be decoded.
	CategoryUnknown Category = "Unknown"
)

// Inclusive lower bounds of each category.
const (
	SafeThreshold       = 75.0
	SuspiciousThreshold = 50.0
	HighRiskThreshold   = 25.0
)

// Categorize maps a trust score in [0,100] to its category.
func Categorize(score float64) Category {
	switch {
	case score >= SafeThreshold:
		return CategorySafe
	case score >= SuspiciousThreshold:
		return CategorySuspicious
	case score >= HighRiskThreshold:
		return CategoryHighRisk
	}
	return CategoryCriticalRisk
}
