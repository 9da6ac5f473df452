// Package config provides the configuration of onionrotate: defaults for
// the daemon endpoints and timing, the process-manager commands used to
// recover the daemon, the rotation session settings, and an optional YAML
// file that overrides the defaults.
package config
