// Memory locking stub for non-Linux platforms
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !linux

package main

import "errors"

// lockMemory is Linux-only; elsewhere the daemon runs unpinned.
func lockMemory() error {
	return errors.New("mlockall not supported on this platform")
}
