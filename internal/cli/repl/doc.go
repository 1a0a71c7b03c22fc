// Package repl implements the interactive SQL shell of snapql-cli.
//
// Statements may span lines and run once a line ends with ';'. Lines
// starting with '.' are shell commands (.tables, .schema, .mode, ...).
// History is kept in ~/.snapql/history.
package repl
