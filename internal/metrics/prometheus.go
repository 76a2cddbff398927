package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Gauge reports a current value at scrape time.
type Gauge func() int

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
//
// Every counter is a sample of a single metric with an `event` label.
// peersOnline may be nil.
func PrometheusHandler(m *Metrics, peersOnline Gauge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintln(w, "# HELP warpcall_events_total Signaling events.")
		_, _ = fmt.Fprintln(w, "# TYPE warpcall_events_total counter")
		escaper := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "warpcall_events_total{event=\"%s\"} %d\n", escaper.Replace(k), snap[k])
		}

		if peersOnline != nil {
			_, _ = fmt.Fprintln(w, "# HELP warpcall_peers_online Currently connected peers.")
			_, _ = fmt.Fprintln(w, "# TYPE warpcall_peers_online gauge")
			_, _ = fmt.Fprintf(w, "warpcall_peers_online %d\n", peersOnline())
		}
	})
}
