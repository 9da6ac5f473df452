// Package main provides the entry point for the onionrotate CLI.
//
// onionrotate keeps a local Tor daemon running and periodically asks it for
// a new identity, confirming every rotation by looking up the egress
// address through the Tor SOCKS proxy.
//
// Usage:
//
//	onionrotate run                     # rotate on ENTER
//	onionrotate run -m auto -i 2m -n 10 # rotate every two minutes, ten times
//	onionrotate check
//
// See --help for all available options.
package main

// main is the entry point for onionrotate.
func main() {
	Execute()
}
