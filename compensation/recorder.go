package compensation

import "time"

// Recorder receives engine measurements. metrics.Prometheus implements it.
type Recorder interface {
	ReportGenerated(outcome string, elapsed time.Duration)
	BenchmarkPointsIngested(accepted, skipped int)
	MarketDegraded(metric string, status MarketStatus)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ReportGenerated(string, time.Duration) {}
func (NopRecorder) BenchmarkPointsIngested(int, int)     {}
func (NopRecorder) MarketDegraded(string, MarketStatus)   {}

// Report outcomes passed to Recorder.ReportGenerated.
const (
	OutcomeSuccess    = "success"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeExternal   = "external_error"
	OutcomeUnexpected = "error"
)

// Outcome classifies an error returned by the engine.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsNotFound(err):
		return OutcomeNotFound
	case IsClientError(err):
		return OutcomeInvalid
	case IsExternal(err):
		return OutcomeExternal
	default:
		return OutcomeUnexpected
	}
}
