package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	donations   prometheus.Counter
	lamports    prometheus.Counter
	transitions *prometheus.CounterVec
	feedClients prometheus.GaugeFunc
}

func newMetrics(feed *Feed) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sahayog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sahayog",
			Name:      "donations_recorded_total",
			Help:      "Donation receipts recorded.",
		}),
		lamports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sahayog",
			Name:      "donated_lamports_total",
			Help:      "Lamports of the recorded donations.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sahayog",
			Name:      "verification_transitions_total",
			Help:      "Campaign verification transitions by target status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(m.requests, m.donations, m.lamports, m.transitions)
	if feed != nil {
		m.feedClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sahayog",
			Name:      "feed_clients",
			Help:      "Connected donation feed clients.",
		}, func() float64 { return float64(feed.Clients()) })
		m.registry.MustRegister(m.feedClients)
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) donation(d *fund.Donation) {
	m.donations.Inc()
	m.lamports.Add(float64(d.Lamports))
}

func (m *metrics) transition(s fund.VerificationStatus) {
	m.transitions.WithLabelValues(string(s)).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the feed upgrade instrumented connections.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unknown"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.requests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
	})
}
