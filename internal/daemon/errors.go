// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingServer is returned when a daemon app is created without a server.
	ErrMissingServer = errors.New("server is required")

	// ErrMissingConfig is returned when a daemon app is created without a config holder.
	ErrMissingConfig = errors.New("config holder is required")
)
