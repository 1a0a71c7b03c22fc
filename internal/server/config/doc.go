// Package config defines snapql-server's settings: listener and notify
// channel, snapshot location and sealing, the interception rules, the
// table denylist and the query cache. Load layers the YAML file and
// SNAPQL_ environment over Default and runs Verify; Sanitize masks
// secrets before the config is logged.
package config
