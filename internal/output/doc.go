// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package output provides filtering, sorting and emission of row datasets as
// text tables, JSON or YAML, plus document emission for request bodies.
package output
