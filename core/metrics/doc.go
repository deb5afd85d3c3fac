// Package metrics defines the sink interfaces used to record allocation
// runs and interactive moves. Sinks like PromSink and InfluxSink live in
// infra/metrics and can be combined with NewMultiSink. NewMetricsSink returns
// a MultiSink automatically when multiple sinks are configured.
package metrics
