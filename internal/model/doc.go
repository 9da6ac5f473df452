// Package model defines the data structures shared by the rotation engine.
//
// This package contains the following main types:
//   - Address: a validated dotted-quad egress address (zero value is unknown)
//   - ServiceState: daemon health as seen by the supervisor
//   - SessionConfig / SessionState: input and mutable state of a session
//   - RotationEvent / Outcome: the immutable record of one rotation attempt
//   - SessionSummary: aggregated view used by reports
//
// Models live in their own package so that the session, storage, metrics,
// and report packages can share them without import cycles.
package model
