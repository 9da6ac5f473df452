// Package verify discovers the current egress address by querying
// plain-text address-reporting endpoints through the Tor SOCKS proxy.
//
// Endpoints are shuffled before every pass and queried one at a time, never
// concurrently, so that egress timing stays predictable. The first body
// that parses as a dotted-quad address wins; failures and malformed bodies
// are skipped. By default a verification is a single pass over the
// endpoints; extra passes with a backoff can be enabled with WithPasses.
package verify
