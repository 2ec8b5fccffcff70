package errors

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every EnhancedError built while it is enabled.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu      sync.RWMutex
	reporter        TelemetryReporter
	reportingActive atomic.Bool
)

// SetTelemetryReporter installs r as the process-wide reporter. nil disables
// reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reportingActive.Store(r != nil && r.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()

	if r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter sends errors to Sentry, one event per error, grouped by
// component and category.
type SentryReporter struct {
	enabled bool
}

func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry configures the Sentry client and installs a SentryReporter.
func InitSentry(dsn, release string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return New(err).
			Component("telemetry").
			Category(CategoryConfiguration).
			Build()
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushSentry blocks until queued events are sent or timeout passes.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError sends ee once. Messages and string context values are scrubbed
// of URL query strings and credentials first.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err))
	level := levelFor(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(map[string]string{
			"component":  ee.Component,
			"category":   string(ee.Category),
			"error_type": fmt.Sprintf("%T", ee.Err),
		})
		for key, value := range ee.Context {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, sentry.Context{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{
			Type:  ee.Component + " " + string(ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})
	ee.MarkReported()
}

// levelFor reports recoverable categories as warnings.
func levelFor(category ErrorCategory) sentry.Level {
	if category.Recoverable() {
		return sentry.LevelWarning
	}
	return sentry.LevelError
}

var (
	urlQuery = regexp.MustCompile(`((?:https?|wss?)://[^?\s]+)\?\S*`)
	secret   = regexp.MustCompile(`(?i)(api[_-]?key|token|auth|password)[=:]\S+`)
)

func scrubMessage(message string) string {
	message = urlQuery.ReplaceAllString(message, "$1?[REDACTED]")
	return secret.ReplaceAllString(message, "$1=[REDACTED]")
}
