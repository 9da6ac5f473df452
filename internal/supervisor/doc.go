// Package supervisor makes sure the Tor daemon is listening on its SOCKS
// port before a rotation session begins.
//
// The supervisor probes the port; if it is closed it terminates stray
// daemon processes, waits for them to exit, and tries an ordered list of
// start strategies (service manager, legacy init script, embedded daemon)
// until one of them opens the port. Running out of strategies is fatal for
// the session and reported as ErrServiceUnavailable.
package supervisor
