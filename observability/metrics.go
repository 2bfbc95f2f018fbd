package observability

import "github.com/prometheus/client_golang/prometheus"

// NewRegistry returns a fresh Prometheus registry a Client can hand to
// every component that records metrics (compress.Manager, pool.Pool,
// scheduler.Scheduler). One registry per Client keeps metrics from two
// concurrently open clients from colliding on metric names.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}
