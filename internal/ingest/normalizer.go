package ingest

import (
	"github.com/google/uuid"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// Normalizer turns per-source payloads into uniform Alert records with
// guaranteed fields: fresh id, alertname, severity and a stable fingerprint.
// It never fails; malformed payloads are rejected at the HTTP layer before
// they get here.
type Normalizer struct {
	logger logger.Logger
}

func NewNormalizer(log logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// NormalizePrometheus handles the Alertmanager webhook shape. Common labels
// and annotations are merged into every alert; per-alert values win.
func (n *Normalizer) NormalizePrometheus(payload *models.PrometheusWebhookPayload) []models.Alert {
	alerts := make([]models.Alert, len(payload.Alerts))
	copy(alerts, payload.Alerts)

	for i := range alerts {
		alerts[i].Labels = mergeMaps(payload.CommonLabels, alerts[i].Labels)
		alerts[i].Annotations = mergeMaps(payload.CommonAnnotations, alerts[i].Annotations)
	}

	return n.Normalize(alerts)
}

// Normalize guarantees the invariant fields on a bare list of alerts, as sent
// by Grafana, DataHub and generic senders.
func (n *Normalizer) Normalize(alerts []models.Alert) []models.Alert {
	out := make([]models.Alert, len(alerts))
	copy(out, alerts)

	for i := range out {
		a := &out[i]

		a.ID = uuid.NewString()

		if a.Labels == nil {
			a.Labels = make(map[string]string)
		}
		if a.Labels["alertname"] == "" {
			a.Labels["alertname"] = "unknown"
		}
		if a.Labels["severity"] == "" {
			a.Labels["severity"] = "medium"
		}
		if a.Annotations == nil {
			a.Annotations = make(map[string]string)
		}
		if a.Status == "" {
			a.Status = models.StatusFiring
		}
		if a.Fingerprint == "" {
			a.Fingerprint = a.ComputeFingerprint()
		}
	}

	return out
}

// mergeMaps overlays specific on top of common without mutating either.
func mergeMaps(common, specific map[string]string) map[string]string {
	if len(common) == 0 {
		return specific
	}
	merged := make(map[string]string, len(common)+len(specific))
	for k, v := range common {
		merged[k] = v
	}
	for k, v := range specific {
		merged[k] = v
	}
	return merged
}
