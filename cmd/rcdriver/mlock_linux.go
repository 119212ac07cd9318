// Memory locking for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build linux

package main

import "golang.org/x/sys/unix"

// lockMemory pins current and future pages so the control loop cannot
// take a major page fault mid-tick. Needs CAP_IPC_LOCK or a matching
// memlock rlimit.
func lockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
