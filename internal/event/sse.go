package event

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteSSE writes e as one Server-Sent Events message whose event name is
// the event type and whose data is the JSON encoding of e.
func WriteSSE(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}
