package prediction

import (
	"github.com/kilianp07/predictive-sensor/core/factory"
)

var registry = factory.NewRegistry[Strategy]()

func init() {
	_ = Register("average", func(map[string]any) (Strategy, error) { return Average{}, nil })
	trend := func(map[string]any) (Strategy, error) { return LinearTrend{}, nil }
	_ = Register("linear_trend", trend)
	_ = Register("trend", trend)
}

// Register adds a strategy factory identified by name.
func Register(name string, f factory.Factory[Strategy]) error {
	return registry.Register(name, f)
}

// New builds the strategy registered under name.
func New(name string, conf map[string]any) (Strategy, error) {
	return registry.Create(factory.ModuleConfig{Type: name, Conf: conf})
}

// Names lists the registered strategy names.
func Names() []string { return registry.Names() }
