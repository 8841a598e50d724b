// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and drive time with Advance, so reconnect
// backoff and activity-stamp behavior can be tested without sleeping.
package clock
