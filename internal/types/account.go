package types

// Balance is a snapshot of account funds.
type Balance struct {
	// Total is available plus locked
	Total float64 `json:"total" yaml:"total"`
	// Available can be committed to new positions
	Available float64 `json:"available" yaml:"available"`
	// Locked is margin held by open positions
	Locked float64 `json:"locked" yaml:"locked"`
}

// Utilization is the share of total funds locked as margin.
func (b Balance) Utilization() float64 {
	if b.Total <= 0 {
		return 0
	}

	return b.Locked / b.Total
}

// HealthStatus classifies account utilization.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// AccountHealth is the result of the per-cycle health check.
type AccountHealth struct {
	Status      HealthStatus `json:"status" yaml:"status"`
	Balance     Balance      `json:"balance" yaml:"balance"`
	Utilization float64      `json:"utilization" yaml:"utilization"`
	Message     string       `json:"message" yaml:"message"`
}

// CanOpen reports whether new positions may be opened.
func (h AccountHealth) CanOpen() bool {
	return h.Status != HealthCritical
}
