// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package loadx provides a client-side HTTP request dispatch layer:
identity-bearing thread-safe requests, pluggable authorisation with an
at-most-once credential-refresh retry, a process-wide shared rate
limit, transport-level retries, chunked response delivery, and
cooperative cancellation from any goroutine.

Create a Service, mint a Factory from it, and dispatch Requests:

	svc := loadx.NewService("my-app/1.0",
		loadx.WithRateLimit(10, time.Second))
	factory := svc.Factory(oauthAuthoriser)

	req, err := request.New("GET", "https://api.example.com/v1/items", "items")
	...
	ex, err := factory.Do(req)
	...
	fmt.Println(ex.StatusCode(), len(ex.Body))

Every factory minted from one Service shares the Service's rate
limiter, so all traffic issued by the process competes for one budget.
A dispatch denied a permit fails fast with ErrRateLimited, or waits
for a refill when the Service was built with WithQueueing.

When a response arrives, the factory's authorisers are consulted in
registration order. The first authoriser claiming the response as an
authorisation failure yields a replacement request, which is
redispatched (consuming a fresh permit) at most once per logical
request; a second claimed response is terminal ErrAuthorisationFailed.

Transport failures are retried per the service's retry policy up to
the request's MaxRetries, independently of the authorisation retry.

To cancel from another goroutine, give the request a token:

	tok := request.NewToken()
	req.CancelToken = tok
	...
	tok.Cancel()

Cancellation is observed at defined suspension points; a cancelled
request never completes successfully and surfaces ErrCancelled.
*/
package loadx
