// Package sensor wires a validator, a history store and a prediction strategy
// to the capabilities of a host platform.
//
// A PredictionSensor observes exactly one upstream entity. Once attached it
// handles every notification on a single goroutine, in arrival order, so the
// history and the prediction state are never touched concurrently by the
// loop. In windowed mode the historical query is dispatched to a worker
// goroutine and the handling task waits for it before recomputing.
package sensor
