// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request provides the logical HTTP request entity dispatched by
the loadx engine, together with its supporting types.

A Request describes one logical HTTP call: an immutable identity (a
process-unique increasing identifier, URL and source), a mutable
thread-safe header map, a body or body stream, and dispatch
configuration. The dispatching factory materializes an http.Request
from it for every transport attempt, so a single Request can safely
back multiple attempts.

A Token is a caller-held cancellation handle. Requests reference their
token weakly: the caller controls the token's lifetime and may cancel
from any goroutine.

An Execution records the state and terminal outcome of one dispatch of
a Request.
*/
package request
