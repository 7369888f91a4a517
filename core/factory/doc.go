// Package factory provides a small generic registry used to build modules
// from configuration. A module is named by a type string and carries a map of
// raw settings that its factory decodes into a typed struct.
//
// Prediction strategies and metrics recorders are both created this way:
//
//	reg := factory.NewRegistry[prediction.Strategy]()
//	_ = reg.Register("average", func(map[string]any) (prediction.Strategy, error) {
//	    return prediction.Average{}, nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "average"})
package factory
