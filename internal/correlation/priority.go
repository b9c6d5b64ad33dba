package correlation

import (
	"math"

	"github.com/fawkes-platform/smart-alerting/internal/models"
)

// PriorityScore computes the weighted priority of a deduplicated alert set:
//
//	0.5 * severity + 0.3 * impact + 0.2 * frequency
//
// where severity is the worst alert's score, impact grows with distinct
// services and pods, and frequency with alert count. Every component is
// clipped to [0, 10], so the score is too. The result is rounded to two
// decimals.
func PriorityScore(alerts []models.Alert) float64 {
	if len(alerts) == 0 {
		return 0
	}

	severity := 0.0
	for i := range alerts {
		if s := models.ParseSeverity(alerts[i].SeverityLabel()).Score(); s > severity {
			severity = s
		}
	}

	group := models.AlertGroup{Alerts: alerts}
	impact := math.Min(float64(len(group.Services()))+0.5*float64(len(group.Pods())), 10)
	frequency := math.Min(0.5*float64(len(alerts)), 10)

	score := 0.5*severity + 0.3*impact + 0.2*frequency
	return math.Round(score*100) / 100
}
