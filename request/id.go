// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "sync/atomic"

// idCounter is the process-wide identifier allocator. Allocation is a
// single atomic increment, so identifiers are strictly increasing and
// never skipped or reused under concurrent allocation.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
