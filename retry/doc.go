// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package retry provides the transport-level retry policy consulted by
the loadx dispatch engine after each transport attempt.

A Policy is the composition of a Decider (whether to retry) and a
Waiter (how long to back off first). The built-in DefaultPolicy retries
transient transport errors and retryable status codes within the
request's MaxRetries budget, backing off with jittered exponential
waits. Compose custom policies from the provided deciders and waiters
with NewPolicy:

	p := retry.NewPolicy(
		retry.Budget().And(retry.TransientErr),
		retry.NewFixedWaiter(250*time.Millisecond),
	)

Transport retries are independent of the engine's single authorisation
retry: they neither consume nor reset it.
*/
package retry
