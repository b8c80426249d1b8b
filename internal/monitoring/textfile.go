package monitoring

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleCount is the violation count of one validation rule.
type RuleCount struct {
	Rule       string
	Policy     string
	Violations int
}

// Snapshot is everything exported for one dataset run.
type Snapshot struct {
	Dataset     string
	InitialRows int
	FinalRows   int
	Operations  []OperationMetrics
	Rules       []RuleCount
}

// Registry builds a private Prometheus registry holding the gauges of snap.
func Registry(snap Snapshot) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tripclean",
		Name:      "rows",
		Help:      "Row count of the dataset at the start and end of the run.",
	}, []string{"dataset", "phase"})
	stageSeconds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tripclean",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent in a pipeline stage.",
	}, []string{"dataset", "stage"})
	stageRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tripclean",
		Name:      "stage_rows_processed",
		Help:      "Rows entering a pipeline stage.",
	}, []string{"dataset", "stage"})
	violations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tripclean",
		Name:      "rule_violations",
		Help:      "Rows violating a validation rule.",
	}, []string{"dataset", "rule", "policy"})

	for _, c := range []prometheus.Collector{rows, stageSeconds, stageRows, violations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	rows.WithLabelValues(snap.Dataset, "initial").Set(float64(snap.InitialRows))
	rows.WithLabelValues(snap.Dataset, "final").Set(float64(snap.FinalRows))
	for _, op := range snap.Operations {
		stage := strings.TrimPrefix(op.Operation, snap.Dataset+".")
		stageSeconds.WithLabelValues(snap.Dataset, stage).Set(op.Duration.Seconds())
		stageRows.WithLabelValues(snap.Dataset, stage).Set(float64(op.RowsProcessed))
	}
	for _, rc := range snap.Rules {
		violations.WithLabelValues(snap.Dataset, rc.Rule, rc.Policy).Set(float64(rc.Violations))
	}

	return reg, nil
}

// WriteTextfile writes snap in the Prometheus text format to path.
func WriteTextfile(path string, snap Snapshot) error {
	reg, err := Registry(snap)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
