// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel assertion helpers shared by
// OpenBridge tests. They encapsulate the select-with-timeout safety
// valve so individual tests never hang on a channel that no one writes.
package testutil
