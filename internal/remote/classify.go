package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/caiber/internal/pipeline"
	"golang.org/x/net/html"
)

// maxMessageLength caps messages lifted from error bodies.
const maxMessageLength = 512

// statusKind maps an HTTP status to a failure kind. failed is false for 2xx.
func statusKind(code int) (kind pipeline.ErrorKind, failed bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return pipeline.KindNetwork, true
	case code >= 400 && code < 500:
		return pipeline.KindValidation, true
	default:
		// 5xx, and 1xx/3xx that survived the client.
		return pipeline.KindServer, true
	}
}

// statusError builds the error for a non-2xx response.
func statusError(stage pipeline.StageID, resp *http.Response, body []byte) *pipeline.RemoteError {
	kind, _ := statusKind(resp.StatusCode)
	msg := errorMessage(body)
	if msg == "" {
		msg = resp.Status
	}
	return &pipeline.RemoteError{
		Stage:   stage,
		Kind:    kind,
		Message: msg,
		Err:     fmt.Errorf("HTTP %d", resp.StatusCode),
	}
}

// transportError classifies an error returned by http.Client.Do.
func transportError(stage pipeline.StageID, err error) *pipeline.RemoteError {
	msg := err.Error()
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request cancelled"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Err != nil {
			msg = opErr.Err.Error()
		}
	}
	return &pipeline.RemoteError{Stage: stage, Kind: pipeline.KindNetwork, Message: msg, Err: err}
}

// validationError wraps a decoding or schema failure.
func validationError(stage pipeline.StageID, err error) *pipeline.RemoteError {
	return &pipeline.RemoteError{Stage: stage, Kind: pipeline.KindValidation, Message: err.Error(), Err: err}
}

// errorMessage extracts the backend's own description of a failure from a
// JSON body ("detail", "message" or "error"). FastAPI style validation
// details, which are lists of objects with a "msg", are joined. Plain text
// bodies are returned trimmed. HTML error pages, as served by a reverse
// proxy in front of the backend, are reduced to their title or first heading.
func errorMessage(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		if json.Valid(body) {
			return ""
		}
		if body[0] == '<' {
			if msg := htmlMessage(string(body)); msg != "" {
				return truncate(msg)
			}
		}
		return truncate(string(body))
	}
	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if msg := rawMessage(raw); msg != "" {
			return truncate(msg)
		}
	}
	return ""
}

func rawMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

// htmlMessage returns the text of the <title>, falling back to the first
// <h1>, of an HTML document.
func htmlMessage(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var title, heading string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" {
					title = nodeText(n)
				}
			case "h1":
				if heading == "" {
					heading = nodeText(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if title != "" {
		return title
	}
	return heading
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			b.WriteString(nodeText(c))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// truncate cuts s to at most maxMessageLength bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxMessageLength {
		return s
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
