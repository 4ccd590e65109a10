package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwindow_records_appended_total",
		Help: "Records appended to a stream",
	}, []string{"stream"})

	recordsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwindow_records_evicted_total",
		Help: "Records dropped from the head of a full stream",
	}, []string{"stream"})

	windowReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamwindow_window_reads_total",
		Help: "Window snapshots materialized, by transport",
	}, []string{"transport"})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamwindow_subscribers",
		Help: "Currently attached window subscribers",
	})

	slowConsumers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamwindow_slow_consumer_disconnects_total",
		Help: "Subscribers dropped because their queue overflowed",
	})
)

func forgetStreamMetrics(name string) {
	recordsAppended.DeleteLabelValues(name)
	recordsEvicted.DeleteLabelValues(name)
}
