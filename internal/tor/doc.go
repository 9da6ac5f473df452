// Package tor talks to a locally installed Tor daemon.
//
// It provides three things the rotation engine needs:
//   - Client: a SOCKS5 dialer (golang.org/x/net/proxy) and an HTTP client
//     that routes address verification traffic through the daemon
//   - ControlChannel: the line-oriented control-port exchange that asks the
//     daemon for a new identity, with a reload fallback
//   - EmbeddedTor: a tornago-managed daemon used as a last-resort start
//     strategy when no system service can be brought up
//
// Port probing (ProbePort) and the SOCKS5 handshake check (CheckConnection)
// are the health signals used by the supervisor and the check command.
package tor
