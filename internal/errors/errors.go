// Package errors wraps pipeline errors with the component that raised them,
// a category and key/value context, and forwards them to an optional
// telemetry reporter.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for reporting and for deciding whether the
// pipeline can keep running.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryAudioSource   ErrorCategory = "audio-source"
	CategoryAudioDevice   ErrorCategory = "audio-device"
	CategoryBuffer        ErrorCategory = "audio-buffer"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryNetwork       ErrorCategory = "network"
	CategoryWorker        ErrorCategory = "worker-pool"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryGeneric       ErrorCategory = "generic"
)

// Recoverable reports whether errors of this category leave the pipeline
// running. A failed source is silenced and a snapshot write is retried on the
// next tick; everything else aborts setup.
func (c ErrorCategory) Recoverable() bool {
	switch c {
	case CategoryAudioSource, CategoryNetwork, CategoryFileIO:
		return true
	default:
		return false
	}
}

// ComponentUnknown is recorded when the caller did not name a component.
const ComponentUnknown = "unknown"

// EnhancedError is an error annotated by ErrorBuilder. Its fields are not
// modified after Build.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	reported atomic.Bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches an EnhancedError target by category and anything else through
// the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	return maps.Clone(ee.Context)
}

// MarkReported records that a reporter has sent the error.
func (ee *EnhancedError) MarkReported() { ee.reported.Store(true) }

// IsReported reports whether MarkReported was called.
func (ee *EnhancedError) IsReported() bool { return ee.reported.Load() }

// ErrorBuilder collects the annotations of an EnhancedError:
//
//	errors.New(err).Component("capture").Category(errors.CategoryAudioSource).
//		Context("source", name).Build()
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts an annotated error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts an annotated error from a format string. %w is honoured.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a key/value pair. A repeated key keeps the last value.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// Build returns the EnhancedError and hands it to the telemetry reporter if
// one is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Err == nil {
		ee.Err = stderrors.New("unspecified error")
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}

	if reportingActive.Load() {
		reportToTelemetry(ee)
	}
	return ee
}

// IsCategory reports whether err wraps an EnhancedError of category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category == category
}

// IsRecoverable reports whether err wraps an EnhancedError whose category is
// recoverable. Plain errors are not.
func IsRecoverable(err error) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category.Recoverable()
}

// The standard library helpers are re-exported so callers need a single
// errors import.

func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
