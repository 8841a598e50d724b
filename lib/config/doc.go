// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for OpenBridge nodes.
//
// Configuration is loaded from a single YAML file specified by:
//   - OPENBRIDGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery: the file is the single
// source of truth, which keeps node configuration deterministic and
// auditable. Defaults exist only to give every field a sensible
// zero-value before the file is applied.
package config
