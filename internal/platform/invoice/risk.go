package invoice

// DefaultRisk is assumed when no verification result is available
const DefaultRisk = 50

// Risk categories
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskVeryHigh = "Very High"
)

// RiskCategory buckets a 0-100 risk score
func RiskCategory(risk int64) string {
	switch {
	case risk <= 25:
		return RiskLow
	case risk <= 50:
		return RiskMedium
	case risk <= 75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}
