package evo

import "errors"

// ErrConfiguration marks setup-time failures: the catalogue, signature, and
// engine settings cannot produce a runnable population. Fatal, surfaced
// before any generation runs.
var ErrConfiguration = errors.New("configuration error")

// ErrValidation marks a genome produced by a genetic operator that failed
// validation. The operators are validity-preserving by construction, so this
// is an engine defect; the run aborts rather than continuing with an invalid
// genome.
var ErrValidation = errors.New("operator produced invalid genome")
