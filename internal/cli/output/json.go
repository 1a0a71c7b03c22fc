package output

import (
	"encoding/json"
	"io"

	"github.com/yndnr/snapql/internal/core/domain"
)

// JSONFormatter writes indented JSON. Rows keep their column order
// through domain.Row's own marshaller.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	// A query with no matches prints [] rather than null.
	if rows, ok := data.([]*domain.Row); ok && rows == nil {
		data = []*domain.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
