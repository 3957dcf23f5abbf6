// Package metrics records the engine's operational counters: active
// streams, bytes moved in each direction, and backpressure events. The
// core engine only ever talks to the narrow Recorder interface, so it
// carries no hard dependency on prometheus — SPEC_FULL.md §6 calls this
// out explicitly as an optional StatsSink.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow interface internal/rpc calls through.
type Recorder interface {
	StreamOpened()
	StreamClosed()
	BytesIn(n int)
	BytesOut(n int)
	Backpressure()
}

// NoOp is the default Recorder when no metrics backend is configured.
type NoOp struct{}

func (NoOp) StreamOpened()    {}
func (NoOp) StreamClosed()    {}
func (NoOp) BytesIn(int)      {}
func (NoOp) BytesOut(int)     {}
func (NoOp) Backpressure()    {}

// Prometheus is a Recorder backed by prometheus/client_golang gauges and
// counters, registered once per daemon process.
type Prometheus struct {
	active        prometheus.Gauge
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	backpressure  prometheus.Counter
	once          sync.Once
}

// NewPrometheus builds and registers the collectors against reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nimbusd",
			Subsystem: "rpc_stream",
			Name:      "active",
			Help:      "Number of currently open RPC byte streams.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbusd",
			Subsystem: "rpc_stream",
			Name:      "bytes_in_total",
			Help:      "Bytes absorbed into data sinks from inbound STREAM packets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbusd",
			Subsystem: "rpc_stream",
			Name:      "bytes_out_total",
			Help:      "Bytes read from data sources and emitted as outbound STREAM packets.",
		}),
		backpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbusd",
			Subsystem: "rpc_stream",
			Name:      "backpressure_total",
			Help:      "Number of times a data sink reported WOULD_BLOCK mid-drain.",
		}),
	}
	reg.MustRegister(p.active, p.bytesIn, p.bytesOut, p.backpressure)
	return p
}

func (p *Prometheus) StreamOpened()   { p.active.Inc() }
func (p *Prometheus) StreamClosed()   { p.active.Dec() }
func (p *Prometheus) BytesIn(n int)   { p.bytesIn.Add(float64(n)) }
func (p *Prometheus) BytesOut(n int)  { p.bytesOut.Add(float64(n)) }
func (p *Prometheus) Backpressure()   { p.backpressure.Inc() }
