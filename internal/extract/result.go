package extract

import "fmt"

// WarningKind categorises a recoverable extraction problem.
type WarningKind string

const (
	WarnSection WarningKind = "section_parse"
	WarnRow     WarningKind = "row_parse"
	WarnField   WarningKind = "field_parse"
)

// Warning records an input that was skipped during extraction.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Section string      `json:"section,omitempty" yaml:"section,omitempty"`
	Row     int         `json:"row,omitempty" yaml:"row,omitempty"`
	Ticker  string      `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	Reason  string      `json:"reason" yaml:"reason"`
}

func (w Warning) String() string {
	s := string(w.Kind)
	if w.Section != "" {
		s += fmt.Sprintf(" section=%q", w.Section)
	}
	if w.Row > 0 {
		s += fmt.Sprintf(" row=%d", w.Row)
	}
	if w.Ticker != "" {
		s += fmt.Sprintf(" ticker=%s", w.Ticker)
	}
	return s + ": " + w.Reason
}

// Result is the outcome of one extraction step: either a value, or a skip.
// A skip carries a Warning when it is worth reporting; metadata rows that
// are expected to be skipped carry none.
type Result[T any] struct {
	Value   T
	Skipped bool
	Warning *Warning
}

func keep[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func skip[T any]() Result[T] {
	return Result[T]{Skipped: true}
}

func warn[T any](w Warning) Result[T] {
	return Result[T]{Skipped: true, Warning: &w}
}
