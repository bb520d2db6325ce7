package ports

// Metrics records session transitions
type Metrics interface {
	ObserveLogin(method string)
	ObserveLogout(reason string)
	ObserveRestore(outcome string)
	ObserveCallback(outcome string)
	ObserveRevalidation(result string)
}

// NopMetrics discards every observation
type NopMetrics struct{}

// ObserveLogin discards the observation
func (NopMetrics) ObserveLogin(string)        {}
// ObserveLogout discards the observation
func (NopMetrics) ObserveLogout(string)       {}
// ObserveRestore discards the observation
func (NopMetrics) ObserveRestore(string)      {}
// ObserveCallback discards the observation
func (NopMetrics) ObserveCallback(string)     {}
// ObserveRevalidation discards the observation
func (NopMetrics) ObserveRevalidation(string) {}
