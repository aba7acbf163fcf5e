package infrastructure

import (
	"net/http"
	"time"
)

// NoopMetrics is a metrics sink that records nothing. Used in tests and when
// metrics collection is disabled.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (*NoopMetrics) RecordHTTPRequest(string, string, int, time.Duration)   {}
func (*NoopMetrics) RecordRefresh(string, bool, int, time.Duration)         {}
func (*NoopMetrics) RecordReconnectAttempt(string)                          {}
func (*NoopMetrics) RecordClassification(string)                            {}
func (*NoopMetrics) RecordOperation(string, bool, time.Duration)            {}
func (*NoopMetrics) Handler() http.Handler                                  { return http.NotFoundHandler() }
