// Package ui renders the live telemetry screen.
//
// The watch screen is a read-only collaborator of the telemetry model: on
// each tick it fires one (gated) poll attempt and redraws from a value-copy
// Snapshot. All mutation of port state stays inside the telemetry package.
package ui
