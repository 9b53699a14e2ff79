//go:build windows

package server

import "syscall"

// sighup is never delivered on Windows, reloading is not available there.
const sighup = syscall.SIGHUP
