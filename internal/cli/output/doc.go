// Package output provides output formatting for snapql-cli.
//
// Query results keep their column order in every format:
//
//   - table: aligned columns, NULL for SQL nulls
//   - json: indented JSON, numbers exactly as the server sent them
//   - yaml: gopkg.in/yaml.v3 documents
package output
