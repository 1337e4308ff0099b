package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gravsim.dev/internal/sim/world"
	"gravsim.dev/internal/transport/ws"
)

// worldCollector reads the world's atomic metrics at scrape time, so the
// world loop never touches Prometheus types.
type worldCollector struct {
	w   *world.World
	ws  *ws.Server
	idx runtimeIndex

	tick        *prometheus.Desc
	bodies      *prometheus.Desc
	totalMass   *prometheus.Desc
	merges      *prometheus.Desc
	observers   *prometheus.Desc
	paused      *prometheus.Desc
	queueDepth  *prometheus.Desc
	stepMS      *prometheus.Desc
	sessions    *prometheus.Desc
	commands    *prometheus.Desc
	rateLimited *prometheus.Desc

	indexQueue   *prometheus.Desc
	indexDropped *prometheus.Desc
	indexWritten *prometheus.Desc
}

func newWorldCollector(w *world.World, wsSrv *ws.Server, idx runtimeIndex) *worldCollector {
	labels := prometheus.Labels{"world": w.ID()}
	d := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, variable, labels)
	}
	return &worldCollector{
		w:   w,
		ws:  wsSrv,
		idx: idx,

		tick:        d("gravsim_world_tick", "Current world tick."),
		bodies:      d("gravsim_world_bodies", "Current number of bodies."),
		totalMass:   d("gravsim_world_total_mass", "Sum of body masses."),
		merges:      d("gravsim_world_merges_total", "Merges resolved since start."),
		observers:   d("gravsim_world_observers", "Connected state observers."),
		paused:      d("gravsim_world_paused", "1 when the simulation is paused."),
		queueDepth:  d("gravsim_world_queue_depth", "Channel backlog depth.", "queue"),
		stepMS:      d("gravsim_world_step_ms", "Last tick step duration in milliseconds."),
		sessions:    d("gravsim_ws_sessions", "Open command sessions."),
		commands:    d("gravsim_ws_commands_total", "Commands accepted from sessions."),
		rateLimited: d("gravsim_ws_rate_limited_total", "Commands rejected by the per-session rate limit."),

		indexQueue:   d("gravsim_index_queue_depth", "Index writer queue depth."),
		indexDropped: d("gravsim_index_dropped_total", "Entries dropped because the index queue was full.", "kind"),
		indexWritten: d("gravsim_index_written_total", "Rows written to the index."),
	}
}

func (c *worldCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *worldCollector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	counter := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, lv...)
	}

	m := c.w.Metrics()
	paused := 0.0
	if m.Paused {
		paused = 1
	}
	gauge(c.tick, float64(c.w.CurrentTick()))
	gauge(c.bodies, float64(m.Bodies))
	gauge(c.totalMass, m.TotalMass)
	counter(c.merges, float64(m.Merges))
	gauge(c.observers, float64(m.Observers))
	gauge(c.paused, paused)
	gauge(c.queueDepth, float64(m.QueueDepths.Insert), "insert")
	gauge(c.queueDepth, float64(m.QueueDepths.Remove), "remove")
	gauge(c.queueDepth, float64(m.QueueDepths.Project), "project")
	gauge(c.stepMS, m.StepMS)

	if c.ws != nil {
		st := c.ws.Stats()
		gauge(c.sessions, float64(st.Sessions))
		counter(c.commands, float64(st.Commands))
		counter(c.rateLimited, float64(st.RateLimited))
	}
	if c.idx != nil {
		st := c.idx.Stats()
		gauge(c.indexQueue, float64(st.QueueDepth))
		counter(c.indexDropped, float64(st.DropTickTotal), "tick")
		counter(c.indexDropped, float64(st.DropMergeTotal), "merge")
		counter(c.indexWritten, float64(st.WrittenTotal))
	}
}

func metricsHandler(w *world.World, wsSrv *ws.Server, idx runtimeIndex) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newWorldCollector(w, wsSrv, idx),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
