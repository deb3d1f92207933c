package script

import (
	"encoding/json"
	"fmt"
	"io"
)

// Render pretty-prints an evaluation result to w. Strings are written
// verbatim, composite values as indented JSON, everything else in its
// default formatting. A nil value renders nothing.
func Render(w io.Writer, value any) error {
	if value == nil {
		return nil
	}

	var text string
	switch v := value.(type) {
	case string:
		text = v
	case map[string]any, []any:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render result: %w", err)
		}
		text = string(encoded)
	default:
		text = fmt.Sprintf("%v", v)
	}

	if _, err := fmt.Fprintln(w, text); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
