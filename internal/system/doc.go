// Package system runs process-manager commands (service start, reload, and
// termination by name) as external processes with discarded output.
//
// Commands are plain values so that the supervisor and the control channel
// can be configured with an ordered list of them and tested with a fake
// Runner that records what would have been executed.
package system
