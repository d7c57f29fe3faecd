// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// isoctl is the main package for the isoctl command line tool. It downloads
// a place's boundary and walk network, and fetches public transport
// isochrones for a destination.
package main
