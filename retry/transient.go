// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"syscall"
)

// Transient reports whether err represents a transport failure with
// some prospect of succeeding on retry: a client-side timeout, a
// refused connection, or a reset connection. Wrapped causes are
// examined, not just err itself.
//
// Connection refusal is treated as transient because it commonly
// occurs while the remote service is restarting and not yet listening.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNRESET || errno == syscall.ECONNREFUSED
	}
	return false
}
