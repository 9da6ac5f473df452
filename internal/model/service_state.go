package model

// ServiceState is the health of the overlay network daemon as last observed
// by the service supervisor.
type ServiceState int

const (
	// ServiceStateUnknown means the daemon has not been probed yet.
	ServiceStateUnknown ServiceState = iota
	// ServiceStateStopped means the proxy port was closed and could not be opened.
	ServiceStateStopped
	// ServiceStateRunning means the proxy port accepted a connection.
	ServiceStateRunning
)

// String returns a human-readable representation of the service state.
func (s ServiceState) String() string {
	switch s {
	case ServiceStateStopped:
		return "stopped"
	case ServiceStateRunning:
		return "running"
	default:
		return "unknown"
	}
}
