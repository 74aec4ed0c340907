// Package promfile writes run metrics in the Prometheus text exposition
// format for the node_exporter textfile collector.
package promfile

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/ccollicutt/journalhealth/pkg/ingest"
	"github.com/ccollicutt/journalhealth/pkg/metrics"
)

// Metric names.
const (
	MetricHealthScore  = "journalhealth_health_score"
	MetricEvents       = "journalhealth_events"
	MetricWindowMetric = "journalhealth_window_metric"
	MetricIngestLines  = "journalhealth_ingest_lines"
)

// Families converts the run tables (and ingest stats, when non-nil) into
// gauge families, in a stable order.
func Families(tables *metrics.Tables, stats *ingest.Stats) []*dto.MetricFamily {
	health := newGauge(MetricHealthScore, "Daily journal health score (0-100).")
	for _, h := range tables.Health {
		health.Metric = append(health.Metric, gauge(h.Score, "date", h.Date))
	}

	events := newGauge(MetricEvents, "Records per UTC date and category.")
	for _, d := range tables.Daily {
		events.Metric = append(events.Metric, gauge(float64(d.Count), "date", d.Date, "category", d.Category))
	}

	window := newGauge(MetricWindowMetric, "Named counts over the summary window.")
	if tables.Window != nil {
		for _, m := range tables.Window.Metrics {
			window.Metric = append(window.Metric, gauge(float64(m.Value), "metric", m.Name))
		}
	}

	fams := []*dto.MetricFamily{health, events, window}

	if stats != nil {
		lines := newGauge(MetricIngestLines, "Input lines by ingestion outcome.")
		for _, kv := range []struct {
			kind string
			n    int
		}{
			{"read", stats.LinesRead},
			{"blank", stats.Blank},
			{"boot_marker", stats.BootMarkers},
			{"unparseable", stats.Unparseable},
			{"bad_timestamp", stats.BadTimestamps},
			{"parsed", stats.Parsed},
			{"merged_duplicate", stats.MergedDuplicates},
		} {
			lines.Metric = append(lines.Metric, gauge(float64(kv.n), "kind", kv.kind))
		}
		fams = append(fams, lines)
	}

	return fams
}

// Write renders families in text exposition format.
func Write(w io.Writer, fams []*dto.MetricFamily) error {
	for _, mf := range fams {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func newGauge(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

// gauge builds a sample from alternating label names and values.
func gauge(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}
