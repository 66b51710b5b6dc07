// Copyright 2026 The loadx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package ratelimit provides the process-wide token-bucket budget that
// gates request dispatch across every factory minted from one service.
package ratelimit
