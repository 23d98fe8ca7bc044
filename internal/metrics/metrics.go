package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ActiveCallsProvider exposes the number of calls currently being routed.
type ActiveCallsProvider interface {
	ActiveCalls() int
}

// DecisionCounter returns routing decision counts grouped by decision kind.
type DecisionCounter interface {
	CountByDecision(ctx context.Context) (map[string]int64, error)
}

// ResolveErrorCounter returns failed resolution counts grouped by reason.
type ResolveErrorCounter interface {
	CountByResolveError(ctx context.Context) (map[string]int64, error)
}

// CursorPositionProvider exposes the round-robin cursor position per ring group.
type CursorPositionProvider interface {
	Positions() map[int64]int
}

// Collector is a prometheus.Collector that gathers Callpath metrics at scrape time.
type Collector struct {
	activeCalls   ActiveCallsProvider
	decisions     DecisionCounter
	resolveErrors ResolveErrorCounter
	cursors       CursorPositionProvider
	startTime     time.Time

	// Metric descriptors.
	activeCallsDesc   *prometheus.Desc
	decisionsDesc     *prometheus.Desc
	resolveErrorsDesc *prometheus.Desc
	cursorDesc        *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	activeCalls ActiveCallsProvider,
	decisions DecisionCounter,
	resolveErrors ResolveErrorCounter,
	cursors CursorPositionProvider,
	startTime time.Time,
) *Collector {
	return &Collector{
		activeCalls:   activeCalls,
		decisions:     decisions,
		resolveErrors: resolveErrors,
		cursors:       cursors,
		startTime:     startTime,

		activeCallsDesc: prometheus.NewDesc(
			"callpath_active_calls",
			"Number of calls currently being routed",
			nil, nil,
		),
		decisionsDesc: prometheus.NewDesc(
			"callpath_routing_decisions_total",
			"Total routing decisions recorded, by terminal decision kind",
			[]string{"decision"}, nil,
		),
		resolveErrorsDesc: prometheus.NewDesc(
			"callpath_resolve_errors_total",
			"Total destination resolutions that failed, by reason",
			[]string{"reason"}, nil,
		),
		cursorDesc: prometheus.NewDesc(
			"callpath_ring_group_cursor",
			"Current round-robin cursor position per ring group",
			[]string{"ring_group_id"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callpath_uptime_seconds",
			"Seconds since the Callpath process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeCallsDesc
	ch <- c.decisionsDesc
	ch <- c.resolveErrorsDesc
	ch <- c.cursorDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Active calls gauge.
	if c.activeCalls != nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeCallsDesc, prometheus.GaugeValue,
			float64(c.activeCalls.ActiveCalls()),
		)
	}

	// Decision counters by kind.
	if c.decisions != nil {
		counts, err := c.decisions.CountByDecision(ctx)
		if err != nil {
			slog.Error("metrics: failed to count routing decisions", "error", err)
		} else {
			for kind, n := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.decisionsDesc, prometheus.CounterValue,
					float64(n), kind,
				)
			}
		}
	}

	// Resolution failure counters by reason.
	if c.resolveErrors != nil {
		counts, err := c.resolveErrors.CountByResolveError(ctx)
		if err != nil {
			slog.Error("metrics: failed to count resolve errors", "error", err)
		} else {
			for reason, n := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.resolveErrorsDesc, prometheus.CounterValue,
					float64(n), reason,
				)
			}
		}
	}

	// Round-robin cursor positions (one gauge per ring group).
	if c.cursors != nil {
		for groupID, pos := range c.cursors.Positions() {
			ch <- prometheus.MustNewConstMetric(
				c.cursorDesc, prometheus.GaugeValue,
				float64(pos), fmt.Sprintf("%d", groupID),
			)
		}
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
