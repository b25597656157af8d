// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "sync/atomic"

// Controller carries pause and save requests into a running generation.
//
// Description:
//
//	Requests are flags, not interrupts. The engine polls them at
//	checkpoint writes, so a pause lands on a decision boundary and the
//	saved frame path always points at the first unvisited branch.
//
// Thread Safety:
//
//	All methods are safe to call from any goroutine.
type Controller struct {
	pause atomic.Bool
	save  atomic.Bool
}

// NewController returns a controller with no pending requests.
func NewController() *Controller {
	return &Controller{}
}

// RequestPause asks the engine to stop at the next checkpoint write.
// The request stays set until cleared, so a pause requested before
// Generate stops it at the first write.
func (c *Controller) RequestPause() {
	c.pause.Store(true)
}

// PauseRequested reports whether a pause is pending.
func (c *Controller) PauseRequested() bool {
	return c.pause.Load()
}

// ClearPause removes a pending pause request so generation can be
// resumed in the same process.
func (c *Controller) ClearPause() {
	c.pause.Store(false)
}

// RequestSave asks the engine to persist a snapshot at the next
// checkpoint write. The periodic save timer calls this; callers may too.
func (c *Controller) RequestSave() {
	c.save.Store(true)
}

// consumeSave atomically claims a pending save request.
func (c *Controller) consumeSave() bool {
	return c.save.CompareAndSwap(true, false)
}
