package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rxtech-lab/argo-bot/internal/types"
)

const namespace = "argo_bot"

// Error kinds reported on argo_bot_errors_total.
const (
	ErrorKindBalance    = "balance"
	ErrorKindMarketData = "market_data"
	ErrorKindOrder      = "order"
	ErrorKindStrategy   = "strategy"
	ErrorKindBooks      = "books"
	ErrorKindEvents     = "events"
)

// Recorder exposes per-account loop metrics. A nil Recorder records nothing.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	signals       *prometheus.CounterVec
	blocked       *prometheus.CounterVec
	opened        *prometheus.CounterVec
	closed        *prometheus.CounterVec
	realized      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	equity        *prometheus.GaugeVec
	utilization   *prometheus.GaugeVec
	openPositions *prometheus.GaugeVec
}

// NewRecorder registers the collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed scheduling cycles",
		}, []string{"account"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one scheduling cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"account"}),
		signals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals produced by the active strategy",
		}, []string{"account", "action"}),
		blocked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_total",
			Help:      "Directional signals that did not open a position",
		}, []string{"account", "reason"}),
		opened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_opened_total",
			Help:      "Positions opened",
		}, []string{"account", "side"}),
		closed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_closed_total",
			Help:      "Positions closed",
		}, []string{"account", "reason"}),
		realized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_pnl_abs_total",
			Help:      "Absolute realized P&L, split by sign",
		}, []string{"account", "sign"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Recoverable errors by kind",
		}, []string{"account", "kind"}),
		equity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equity",
			Help:      "Total account balance",
		}, []string{"account"}),
		utilization: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utilization_ratio",
			Help:      "Locked margin over total balance",
		}, []string{"account"}),
		openPositions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Positions currently monitored",
		}, []string{"account"}),
	}
}

func (r *Recorder) Cycle(account string, took time.Duration, open int) {
	if r == nil {
		return
	}

	r.cycles.WithLabelValues(account).Inc()
	r.cycleDuration.WithLabelValues(account).Observe(took.Seconds())
	r.openPositions.WithLabelValues(account).Set(float64(open))
}

func (r *Recorder) Health(account string, health types.AccountHealth) {
	if r == nil {
		return
	}

	r.equity.WithLabelValues(account).Set(health.Balance.Total)
	r.utilization.WithLabelValues(account).Set(health.Utilization)
}

func (r *Recorder) Signal(account string, action types.Action) {
	if r == nil {
		return
	}

	r.signals.WithLabelValues(account, string(action)).Inc()
}

func (r *Recorder) Blocked(account string, reason types.BlockReason) {
	if r == nil {
		return
	}

	r.blocked.WithLabelValues(account, string(reason)).Inc()
}

func (r *Recorder) Opened(account string, side types.Side) {
	if r == nil {
		return
	}

	r.opened.WithLabelValues(account, string(side)).Inc()
}

func (r *Recorder) Closed(account string, record types.TradeRecord) {
	if r == nil {
		return
	}

	r.closed.WithLabelValues(account, string(record.CloseReason)).Inc()

	switch {
	case record.RealizedPnL > 0:
		r.realized.WithLabelValues(account, "profit").Add(record.RealizedPnL)
	case record.RealizedPnL < 0:
		r.realized.WithLabelValues(account, "loss").Add(-record.RealizedPnL)
	}
}

func (r *Recorder) Error(account, kind string) {
	if r == nil {
		return
	}

	r.errors.WithLabelValues(account, kind).Inc()
}
