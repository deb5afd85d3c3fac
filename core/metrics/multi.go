package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the summary to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(sum RunSummary) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(sum); err != nil {
			return err
		}
	}
	return nil
}

// RecordMove forwards move events when supported by the sink.
func (m *MultiSink) RecordMove(ev MoveEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MoveRecorder); ok {
			if err := rec.RecordMove(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
