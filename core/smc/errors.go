package smc

import "errors"

var (
	ErrDegenerateWeights = errors.New("all incremental weights underflowed to zero")
	ErrRootNotConverged  = errors.New("tempering root-finder exceeded iteration cap")
	ErrInvalidBracket    = errors.New("tempering root-finder bracket contains no sign change")
	ErrInvalidMixing     = errors.New("mixing weight must be in [0, 1]")
	ErrTooManyBlocks     = errors.New("block count exceeds number of free parameters")
	ErrNoParticles       = errors.New("particle count must be positive")
	ErrBadSchedule       = errors.New("fixed schedule must be strictly increasing and end at 1")
	ErrDimensionMismatch = errors.New("input length mismatch")
	ErrCovariance        = errors.New("proposal covariance could not be factorized")
)
