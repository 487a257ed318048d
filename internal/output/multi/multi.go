// Package multi fans report events out to several sinks.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/kartavya/internal/model"
	"github.com/crimson-sun/kartavya/internal/output"
)

// Sink is an output and the name its errors are reported under.
type Sink struct {
	Name string
	Out  output.Output
}

// Named pairs an output with a name.
func Named(name string, out output.Output) Sink {
	return Sink{Name: name, Out: out}
}

// Multi delivers each event to every sink in order. A failing sink does
// not stop delivery to the rest; its error is returned prefixed with the
// sink's name.
type Multi struct {
	sinks []Sink
}

// New fans out to outputs named by position: "output 0", "output 1", ...
func New(outputs ...output.Output) *Multi {
	sinks := make([]Sink, len(outputs))
	for i, o := range outputs {
		sinks[i] = Named(fmt.Sprintf("output %d", i), o)
	}
	return &Multi{sinks: sinks}
}

// NewNamed fans out to the given sinks.
func NewNamed(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Names lists the sinks in delivery order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name
	}
	return names
}

// Write delivers the event to every sink and joins their errors.
func (m *Multi) Write(ctx context.Context, event model.Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Out.Write(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, joining their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
