// Package prediction derives a future reading from a history of observations.
// Strategies are pure: they never mutate the history they are given and they
// report missing data through ErrInsufficientHistory instead of a value.
package prediction
