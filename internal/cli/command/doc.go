// Package command provides CLI command definitions for snapql-cli.
//
// It uses urfave/cli/v2 for command parsing. Commands:
//
//   - query: run SQL against the snapshot through the intercepted API
//   - ready: report (or wait for) snapshot readiness
//   - watch: follow the notification channel
//   - shell: interactive SQL session
//   - profile: saved servers in ~/.snapql/cli.yaml
//   - seal / unseal: encrypt or decrypt a snapshot file
package command
