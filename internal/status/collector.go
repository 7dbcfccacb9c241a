package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// collector exports the jitbuf.Engine counter snapshot as Prometheus
// metrics. Modeled on runZeroInc-sockstats' TCPInfoCollector
// (pkg/exporter/exporter.go): a Collect() that reads a lock-free snapshot
// and emits one metric per field, rather than keeping live prometheus
// counter objects that would need their own synchronization.
type collector struct {
	server *Server

	fillPercent     *prometheus.Desc
	state           *prometheus.Desc
	sampleRate      *prometheus.Desc
	numReceivers    *prometheus.Desc
	mox             *prometheus.Desc
	seqOutOfOrder   *prometheus.Desc
	seqDuplicate    *prometheus.Desc
	seqMissing      *prometheus.Desc
	seqTooLate      *prometheus.Desc
	bufferOverflow  *prometheus.Desc
	bufferUnderflow *prometheus.Desc
	hl2Faults       *prometheus.Desc
	jitterSeconds   *prometheus.Desc
	rateUpMbit      *prometheus.Desc
	rateDownMbit    *prometheus.Desc
}

const namespace = "hl2wifibuffer"

func newCollector(s *Server) *collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(namespace+"_"+name, help, nil, nil)
	}
	return &collector{
		server:          s,
		fillPercent:     desc("buffer_fill_percent", "Jitter buffer level as a percentage of the target fill."),
		state:           desc("engine_state", "Engine lifecycle state: 0=STARTUP, 1=NORMAL, 2=RESTARTING."),
		sampleRate:      desc("sample_rate_hz", "Current client-reported sample rate."),
		numReceivers:    desc("num_receivers", "Current client-reported receiver count."),
		mox:             desc("mox", "1 if the most recently observed MOX bit was set."),
		seqOutOfOrder:   desc("seq_out_of_order_total", "Client I/Q datagrams that arrived behind the newest accepted sequence, including those discarded as too late."),
		seqDuplicate:    desc("seq_duplicate_total", "Duplicate client I/Q datagrams accepted."),
		seqMissing:      desc("seq_missing_total", "Ring slots emitted as silence because no payload arrived in time."),
		seqTooLate:      desc("seq_too_late_total", "Client I/Q datagrams discarded as arriving behind the read cursor."),
		bufferOverflow:  desc("buffer_overflow_total", "Ring overflow trims performed by the pacer."),
		bufferUnderflow: desc("buffer_underflow_total", "Ring underflow events (empty ring on a pacer tick)."),
		hl2Faults:       desc("hl2_buffer_faults_total", "Radio-reported Tx FIFO fault transitions observed."),
		jitterSeconds:   desc("wifi_jitter_seconds", "Rolling maximum inter-arrival delta on the client-facing link."),
		rateUpMbit:      desc("wifi_rate_up_mbit", "Estimated upstream (client to radio) rate in Mbit/s."),
		rateDownMbit:    desc("wifi_rate_down_mbit", "Estimated downstream (radio to client) rate in Mbit/s."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.fillPercent, c.state, c.sampleRate, c.numReceivers, c.mox,
		c.seqOutOfOrder, c.seqDuplicate, c.seqMissing, c.seqTooLate,
		c.bufferOverflow, c.bufferUnderflow, c.hl2Faults,
		c.jitterSeconds, c.rateUpMbit, c.rateDownMbit,
	} {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.server.engine.Snapshot()
	rates := c.server.rates.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.fillPercent, prometheus.GaugeValue, snap.FillPercent())
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, stateCode(snap.State))
	ch <- prometheus.MustNewConstMetric(c.sampleRate, prometheus.GaugeValue, float64(snap.SampleRate))
	ch <- prometheus.MustNewConstMetric(c.numReceivers, prometheus.GaugeValue, float64(snap.NumReceivers))
	ch <- prometheus.MustNewConstMetric(c.mox, prometheus.GaugeValue, boolToFloat(snap.MOX))
	ch <- prometheus.MustNewConstMetric(c.seqOutOfOrder, prometheus.CounterValue, float64(snap.SeqOutOfOrder))
	ch <- prometheus.MustNewConstMetric(c.seqDuplicate, prometheus.CounterValue, float64(snap.SeqDuplicate))
	ch <- prometheus.MustNewConstMetric(c.seqMissing, prometheus.CounterValue, float64(snap.SeqMissing))
	ch <- prometheus.MustNewConstMetric(c.seqTooLate, prometheus.CounterValue, float64(snap.SeqTooLate))
	ch <- prometheus.MustNewConstMetric(c.bufferOverflow, prometheus.CounterValue, float64(snap.BufferOverflow))
	ch <- prometheus.MustNewConstMetric(c.bufferUnderflow, prometheus.CounterValue, float64(snap.BufferUnderflow))
	ch <- prometheus.MustNewConstMetric(c.hl2Faults, prometheus.CounterValue, float64(snap.HL2BufferFaults))
	ch <- prometheus.MustNewConstMetric(c.jitterSeconds, prometheus.GaugeValue, rates.JitterSeconds)
	ch <- prometheus.MustNewConstMetric(c.rateUpMbit, prometheus.GaugeValue, rates.UpMbit)
	ch <- prometheus.MustNewConstMetric(c.rateDownMbit, prometheus.GaugeValue, rates.DownMbit)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func stateCode(state string) float64 {
	switch state {
	case "NORMAL":
		return 1
	case "RESTARTING":
		return 2
	default: // STARTUP
		return 0
	}
}

func (s *Server) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(s))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
