package status

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/jitbuf"
)

// Interfaces describes the two interfaces the relay bridges, resolved once
// at startup by internal/netdiscover.
type Interfaces struct {
	HL2Name, HL2Addr   string
	WifiName, WifiAddr string
}

// Server serves the HTML status page of spec.md §6: a self-refreshing page
// with interface names, byte-rate estimates, jitter, buffer level, and
// sequence-error counts. Grounded on original_source/hl2_wifi_buffer.c's
// webserver() thread, restructured as an http.Handler.
type Server struct {
	engine *jitbuf.Engine
	rates  *RateJitter
	ifaces Interfaces
}

// NewServer constructs a status.Server bound to the given engine, rate
// tracker, and resolved interface info.
func NewServer(engine *jitbuf.Engine, rates *RateJitter, ifaces Interfaces) *Server {
	return &Server{engine: engine, rates: rates, ifaces: ifaces}
}

// Mux returns an http.Handler serving "/" (the HTML page) and "/metrics"
// (the Prometheus exposition, see collector.go).
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTML)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		// The original C webserver() thread closes immediately on a
		// favicon request rather than rendering the page for it.
		http.Error(w, "", http.StatusNoContent)
	})
	mux.Handle("/metrics", s.metricsHandler())
	return mux
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "favicon.ico") {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	snap := s.engine.Snapshot()
	rates := s.rates.Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html>
<head>
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<meta http-equiv="refresh" content="3">
	<title>Hermes-Lite2 WiFi Buffer</title>
</head>
<style>
table, th, td { border:1px solid black; }
</style>
<body>
<h4>Hermes-Lite2 WiFi Buffer</h4>
`)

	fmt.Fprintf(w, "<b>Hermes Lite</b><br>\nHL2 Interface %s<br>\nInterface address %s<br>\nInternal buffer faults %d<br><br>\n",
		orNone(s.ifaces.HL2Name), orNone(s.ifaces.HL2Addr), snap.HL2BufferFaults)

	fmt.Fprintf(w, "<b>WiFi</b><br>\nWiFi Interface %s<br>\nWiFi Address %s<br>\nRate up %.1f Mbits/sec<br>\nRate down %.1f Mbits/sec<br>\nJitter %.0f ms<br><br>\n",
		orNone(s.ifaces.WifiName), orNone(s.ifaces.WifiAddr), rates.UpMbit, rates.DownMbit, rates.JitterSeconds*1000)

	if snap.Used > 0 {
		fmt.Fprintf(w, "<b>WiFi Sequence Errors:</b><br>\nOut of order %d<br>\nMissing %d<br>\nDuplicate %d<br>\nToo late - lost %d<br><br>\n",
			snap.SeqOutOfOrder, snap.SeqMissing, snap.SeqDuplicate, snap.SeqTooLate)
	} else {
		fmt.Fprint(w, "<b>WiFi Sequence Errors:</b><br>\nBuffer not in use<br><br>\n")
	}

	fmt.Fprintf(w, "<b>WiFi Buffer</b><br>\nState %s<br>\nLevel %.1f%%<br>\nOverflow faults %d<br>\nUnderflow faults %d<br>\n",
		snap.State, snap.FillPercent(), snap.BufferOverflow, snap.BufferUnderflow)

	fmt.Fprint(w, "</body>\n</html>\n")
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
