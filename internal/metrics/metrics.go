// Package metrics exports service counters to Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "astroguide"

// Collectors implements the observer interfaces of the quota, insights and
// chat packages and records HTTP traffic.
type Collectors struct {
	quotaDecisions  *prometheus.CounterVec
	storageFailures *prometheus.CounterVec
	inference       *prometheus.CounterVec
	chatReplies     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers all collectors on reg, reusing ones that are already
// registered. A nil reg means the default registerer.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{}
	var err error

	if c.quotaDecisions, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_decisions_total",
		Help:      "Daily quota record attempts by outcome.",
	}, "activity", "outcome"); err != nil {
		return nil, err
	}
	if c.storageFailures, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_storage_failures_total",
		Help:      "Usage counter reads and writes that failed and were ignored.",
	}, "activity", "op"); err != nil {
		return nil, err
	}
	if c.inference, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inference_results_total",
		Help:      "Palm and face readings by insight source.",
	}, "domain", "source"); err != nil {
		return nil, err
	}
	if c.chatReplies, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_replies_total",
		Help:      "Chat replies by source.",
	}, "source"); err != nil {
		return nil, err
	}
	if c.httpRequests, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, "method", "route", "status"); err != nil {
		return nil, err
	}

	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	if err := reg.Register(hist); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register http histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register http histogram: %w", err)
		}
		hist = existing
	}
	c.httpDuration = hist

	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register %s: %w", opts.Name, err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register %s: %w", opts.Name, err)
		}
		return existing, nil
	}
	return vec, nil
}

func (c *Collectors) ObserveRecord(activity string, allowed bool) {
	if c == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "exhausted"
	}
	c.quotaDecisions.WithLabelValues(activity, outcome).Inc()
}

func (c *Collectors) ObserveStorageFailure(activity, op string) {
	if c == nil {
		return
	}
	c.storageFailures.WithLabelValues(activity, op).Inc()
}

func (c *Collectors) ObserveInference(domain, source string) {
	if c == nil {
		return
	}
	c.inference.WithLabelValues(domain, source).Inc()
}

func (c *Collectors) ObserveChat(source string) {
	if c == nil {
		return
	}
	c.chatReplies.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request. route is the chi route pattern.
func (c *Collectors) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
