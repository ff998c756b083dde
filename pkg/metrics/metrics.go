package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for each validation attempt
const (
	ResultAccepted         = "accepted"
	ResultInvalidSignature = "invalid_signature"
	ResultNonceUsed        = "nonce_used"
	ResultInvalidInput     = "invalid_input"
	ResultError            = "error"
)

var METRICS_NAMESPACE = "signature_validator"

type VerifierMetrics interface {
	RecordValidation(result string)
	RecordAuthorityCheck(signedByAuthority bool)
}

type verifierMetrics struct {
	validations     *prometheus.CounterVec
	authorityChecks *prometheus.CounterVec
}

func InitMetrics(ctx context.Context, registry *prometheus.Registry) *verifierMetrics {
	metrics := &verifierMetrics{}

	metrics.validations = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "validations_total",
		Help: "Signature validations by outcome", Namespace: METRICS_NAMESPACE}, []string{"result"})
	metrics.authorityChecks = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "authority_checks_total",
		Help: "Stateless authority checks by outcome", Namespace: METRICS_NAMESPACE}, []string{"result"})

	registry.MustRegister(metrics.validations)
	registry.MustRegister(metrics.authorityChecks)
	return metrics
}

func (vm *verifierMetrics) RecordValidation(result string) {
	vm.validations.WithLabelValues(result).Inc()
}

func (vm *verifierMetrics) RecordAuthorityCheck(signedByAuthority bool) {
	result := "rejected"
	if signedByAuthority {
		result = "signed"
	}
	vm.authorityChecks.WithLabelValues(result).Inc()
}

type noopMetrics struct{}

// NewNoopMetrics returns a VerifierMetrics that records nothing
func NewNoopMetrics() VerifierMetrics {
	return noopMetrics{}
}

func (noopMetrics) RecordValidation(string)   {}
func (noopMetrics) RecordAuthorityCheck(bool) {}
