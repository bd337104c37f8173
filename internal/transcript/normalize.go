// internal/transcript/normalize.go
package transcript

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// PositionalArg is the key a bare tool argument is wrapped under.
const PositionalArg = "__arg1"

// queryKey is collapsed to PositionalArg when it is the only argument.
const queryKey = "query"

var emptyArgs = json.RawMessage("{}")

// NormalizeArguments turns raw tool-call argument text into a JSON object.
//
//   - empty input or a JSON null yields {}
//   - a JSON object whose only key is "query" becomes {"__arg1": <value>}
//   - any other JSON object passes through with its key order intact
//   - a JSON string becomes {"__arg1": <string>}
//   - any other JSON value becomes {"__arg1": "<value as JSON text>"}
//   - text that is not JSON becomes {"__arg1": "<raw text>"}
func NormalizeArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return emptyArgs
	}
	if !json.Valid([]byte(trimmed)) {
		return wrapArg(raw)
	}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
			return wrapArg(raw)
		}
		if v, ok := fields[queryKey]; ok && len(fields) == 1 {
			return positional(v)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(trimmed)); err != nil {
			return wrapArg(raw)
		}
		return buf.Bytes()
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return wrapArg(raw)
		}
		return wrapArg(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(trimmed)); err != nil {
			return wrapArg(raw)
		}
		return wrapArg(buf.String())
	}
}

func wrapArg(s string) json.RawMessage {
	v, err := marshal(s)
	if err != nil {
		return emptyArgs
	}
	return positional(v)
}

func positional(v json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteString(`{"` + PositionalArg + `":`)
	if err := json.Compact(&buf, v); err != nil {
		return emptyArgs
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// NormalizeResult renders a tool result for the transcript. A JSON object is
// decoded and re-encoded with two-space indentation, keeping key order. A
// repeated key keeps its first position and its last value. Anything else is
// returned unchanged.
func NormalizeResult(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		return raw
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	compact, err := reencode(dec)
	if err != nil {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return raw
	}
	return buf.String()
}

// reencode reads one JSON value from dec and writes it back compactly.
func reencode(dec *json.Decoder) ([]byte, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return encodeScalar(tok)
	}
	var buf bytes.Buffer
	switch delim {
	case '{':
		var keys []string
		vals := make(map[string][]byte)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := kt.(string)
			val, err := reencode(dec)
			if err != nil {
				return nil, err
			}
			if _, seen := vals[key]; !seen {
				keys = append(keys, key)
			}
			vals[key] = val
		}
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := encodeScalar(key)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(vals[key])
		}
		buf.WriteByte('}')
	case '[':
		buf.WriteByte('[')
		for i := 0; dec.More(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			val, err := reencode(dec)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte(']')
	}
	// closing delimiter
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeScalar encodes a string, number, bool or null without HTML escaping.
func encodeScalar(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var htmlTag = regexp.MustCompile(`(?i)<(html|body|div|p|table|ul|ol|h[1-6]|a\s|span|br)\b`)

// LooksLikeHTML reports whether s appears to be an HTML document or fragment.
func LooksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// htmlResult converts an HTML tool result to markdown. The original text is
// kept when conversion fails or yields nothing.
func htmlResult(raw string) (string, bool) {
	if !LooksLikeHTML(raw) {
		return raw, false
	}
	md, err := htmltomarkdown.ConvertString(raw)
	if err != nil || strings.TrimSpace(md) == "" {
		return raw, false
	}
	return md, true
}
