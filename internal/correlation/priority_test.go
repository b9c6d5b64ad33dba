package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fawkes-platform/smart-alerting/internal/models"
)

func priorityAlert(service, pod, severity string) models.Alert {
	labels := map[string]string{
		"alertname": "X",
		"severity":  severity,
	}
	if service != "" {
		labels["service"] = service
	}
	if pod != "" {
		labels["pod"] = pod
	}
	return models.Alert{Labels: labels}
}

func TestPriorityScoreSingleCritical(t *testing.T) {
	// severity 10, impact 1 (one service), frequency 0.5
	score := PriorityScore([]models.Alert{priorityAlert("api", "", "critical")})
	assert.InDelta(t, 0.5*10+0.3*1+0.2*0.5, score, 0.001)
}

func TestPriorityScoreTwoAlertsSameService(t *testing.T) {
	// severity 10, impact 1, frequency 1
	score := PriorityScore([]models.Alert{
		priorityAlert("api", "", "critical"),
		priorityAlert("api", "", "critical"),
	})
	assert.InDelta(t, 5.5, score, 0.001)
}

func TestPriorityScorePodsWeighHalf(t *testing.T) {
	// impact = 1 service + 0.5 * 2 pods = 2
	score := PriorityScore([]models.Alert{
		priorityAlert("api", "pod-1", "warning"),
		priorityAlert("api", "pod-2", "warning"),
	})
	assert.InDelta(t, 0.5*5+0.3*2+0.2*1, score, 0.001)
}

func TestPriorityScoreWorstSeverityWins(t *testing.T) {
	score := PriorityScore([]models.Alert{
		priorityAlert("api", "", "info"),
		priorityAlert("api", "", "critical"),
	})
	assert.InDelta(t, 0.5*10+0.3*1+0.2*1, score, 0.001)
}

func TestPriorityScoreUnknownSeverityIsMedium(t *testing.T) {
	score := PriorityScore([]models.Alert{priorityAlert("api", "", "bogus")})
	assert.InDelta(t, 0.5*5+0.3*1+0.2*0.5, score, 0.001)
}

func TestPriorityScoreClampedAtTen(t *testing.T) {
	// 40 services, 60 alerts: every component saturates at 10.
	var alerts []models.Alert
	for i := 0; i < 40; i++ {
		alerts = append(alerts, priorityAlert("svc-"+string(rune('a'+i%26))+string(rune('a'+i/26)), "", "critical"))
	}
	for i := 0; i < 20; i++ {
		alerts = append(alerts, priorityAlert("svc-aa", "", "critical"))
	}
	score := PriorityScore(alerts)
	assert.InDelta(t, 10.0, score, 0.001)
	assert.LessOrEqual(t, score, 10.0)
}

func TestPriorityScoreEmpty(t *testing.T) {
	assert.Zero(t, PriorityScore(nil))
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, models.TierP0, models.TierForPriority(8.0))
	assert.Equal(t, models.TierP1, models.TierForPriority(7.99))
	assert.Equal(t, models.TierP1, models.TierForPriority(6.0))
	assert.Equal(t, models.TierP2, models.TierForPriority(5.99))
	assert.Equal(t, models.TierP2, models.TierForPriority(4.0))
	assert.Equal(t, models.TierP3, models.TierForPriority(3.99))
}
