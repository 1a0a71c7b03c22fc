// Package config stores snapql-cli preferences in ~/.snapql/cli.yaml.
//
// The file holds named profiles (server, base path, notify path) and the
// default output format. Global flags and SNAPQL_* variables always win
// over the selected profile.
package config
