// Package session drives repeated identity rotations.
//
// A Session composes three capabilities: a Supervisor that guarantees the
// daemon is running, a Rotator that asks it for a new identity, and an
// AddressSource that reports the resulting egress address. It moves through
// the phases
//
//	Idle -> Verifying(baseline) -> {Waiting (auto only) <-> Verifying} -> Terminated
//
// and records one immutable RotationEvent per attempt. The session is
// single-threaded: rotation always precedes verification within an attempt,
// and every blocking point takes the caller's context so that an interrupt
// unwinds immediately.
package session
