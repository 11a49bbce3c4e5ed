package audit

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the report as a Prometheus textfile-collector file.
func WriteMetrics(path string, r *Report) error {
	registry := prometheus.NewRegistry()

	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "token_audit_findings",
		Help: "Findings of the last security audit by severity.",
	}, []string{"network", "severity"})
	secure := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "token_audit_secure",
		Help: "1 when the last security audit found no critical issues.",
	}, []string{"network"})
	finished := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "token_audit_last_run_timestamp_seconds",
		Help: "Unix time the last security audit finished.",
	}, []string{"network"})

	registry.MustRegister(findings, secure, finished)

	findings.WithLabelValues(r.Network, string(SeverityCritical)).Set(float64(len(r.Critical)))
	findings.WithLabelValues(r.Network, string(SeverityAdvisory)).Set(float64(len(r.Advisory)))
	if r.Secure {
		secure.WithLabelValues(r.Network).Set(1)
	} else {
		secure.WithLabelValues(r.Network).Set(0)
	}
	finished.WithLabelValues(r.Network).Set(float64(r.FinishedAt.Unix()))

	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
