// Package logging derives per-component loggers from one root logger so
// every line carries a stable component field.
package logging

import (
	"github.com/charmbracelet/log"
)

// Factory hands out component-scoped sub-loggers of a shared root.
type Factory struct {
	base *log.Logger
}

func NewFactory(base *log.Logger) *Factory {
	return &Factory{base: base}
}

// ForComponent returns a logger tagged with the component name.
func (f *Factory) ForComponent(name string) *log.Logger {
	return f.base.With("component", name)
}
