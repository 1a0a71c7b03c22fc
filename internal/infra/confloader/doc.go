// Package confloader merges the server's YAML file and SNAPQL_
// environment variables into a config struct through koanf, and
// watches files with fsnotify so the server can reload them.
//
// Environment wins over the file; anything neither source names keeps
// the value preset in the struct. Nested keys use a double underscore:
// SNAPQL_SERVER__NOTIFY_PATH sets server.notify_path.
package confloader
