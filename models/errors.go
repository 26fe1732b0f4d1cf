package models

import (
	"errors"

	"github.com/aouyang1/go-stationcast/feature"
)

var (
	ErrModelNotTrained     = errors.New("no trained model for station")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidHorizon      = errors.New("horizon must be positive")
	ErrNoStationsTrained   = errors.New("no station could be trained")
	ErrUnknownModel        = errors.New("unknown model strategy")
	ErrArtifactNotFound    = errors.New("no persisted artifact")
	ErrCorruptArtifact     = errors.New("persisted artifact is corrupt")
	ErrStaleArtifact       = errors.New("persisted artifact was trained on different data")
	ErrInvalidOptions      = errors.New("invalid strategy options")

	// ErrLagTooSmall is returned when the forecast horizon is larger than the lag feature, which
	// would make forecast rows read values from inside the forecast window.
	ErrLagTooSmall = feature.ErrLagTooSmall
)
