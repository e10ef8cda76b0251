package pipeline

import (
	"time"
)

// LineKind classifies a progress line for display.
type LineKind string

const (
	KindHeader  LineKind = "header"
	KindInfo    LineKind = "info"
	KindSuccess LineKind = "success"
	KindError   LineKind = "error"
)

// Line is one human-readable progress event.
type Line struct {
	Kind LineKind
	Text string
	At   time.Time
}

func (l Line) String() string {
	switch l.Kind {
	case KindHeader:
		return "== " + l.Text + " =="
	case KindSuccess:
		return "[ok] " + l.Text
	case KindError:
		return "[error] " + l.Text
	default:
		return l.Text
	}
}

// Reporter receives progress lines as they happen.
type Reporter interface {
	Report(Line)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Line)

func (f ReporterFunc) Report(l Line) { f(l) }

type discardReporter struct{}

func (discardReporter) Report(Line) {}
