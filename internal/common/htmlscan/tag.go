package htmlscan

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// attrSpan records where one attribute lives inside the raw tag bytes.
// Value offsets exclude surrounding quotes; valStart is -1 for valueless
// attributes (e.g. "controls").
type attrSpan struct {
	name     string
	keyStart int
	keyEnd   int
	valStart int
	valEnd   int
	quote    byte
}

// Tag is one start or self-closing tag seen during a Scan. It is only valid
// for the duration of the scan callback; the underlying bytes are reused by
// the tokenizer afterwards.
type Tag struct {
	// Name is the lowercased element name.
	Name string
	// SelfClosing reports whether the tag was written with a trailing "/>".
	SelfClosing bool

	raw      []byte
	spans    []attrSpan
	replaced map[int]string
	added    []html.Attribute
}

// parseTag scans the raw bytes of a start tag and records attribute spans.
// Returns nil when the bytes do not look like a start tag.
func parseTag(raw []byte, selfClosing bool) *Tag {
	if len(raw) < 3 || raw[0] != '<' || raw[len(raw)-1] != '>' {
		return nil
	}

	i := 1
	nameStart := i
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}
	if i == nameStart {
		return nil
	}

	t := &Tag{
		Name:        strings.ToLower(string(raw[nameStart:i])),
		SelfClosing: selfClosing,
		raw:         raw,
	}

	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw)-1 || raw[i] == '>' {
			break
		}

		sp := attrSpan{keyStart: i, valStart: -1}
		for i < len(raw) && raw[i] != '=' && !isSpace(raw[i]) && raw[i] != '>' {
			i++
		}
		sp.keyEnd = i
		sp.name = strings.ToLower(string(raw[sp.keyStart:sp.keyEnd]))

		j := i
		for j < len(raw) && isSpace(raw[j]) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			i = j + 1
			for i < len(raw) && isSpace(raw[i]) {
				i++
			}
			if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
				sp.quote = raw[i]
				i++
				sp.valStart = i
				for i < len(raw) && raw[i] != sp.quote {
					i++
				}
				sp.valEnd = i
				if i < len(raw) {
					i++
				}
			} else {
				sp.valStart = i
				for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
					i++
				}
				sp.valEnd = i
			}
		}

		t.spans = append(t.spans, sp)
	}

	return t
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// Attr returns the unescaped value of the first attribute with the given
// name (case-insensitive). Returns empty string if not present.
func (t *Tag) Attr(name string) string {
	name = strings.ToLower(name)
	for _, sp := range t.spans {
		if sp.name == name {
			if sp.valStart < 0 {
				return ""
			}
			return html.UnescapeString(string(t.raw[sp.valStart:sp.valEnd]))
		}
	}
	return ""
}

// HasAttr reports whether the tag carries an attribute with the given name,
// regardless of its value.
func (t *Tag) HasAttr(name string) bool {
	name = strings.ToLower(name)
	for _, sp := range t.spans {
		if sp.name == name {
			return true
		}
	}
	return false
}

// SetAttr replaces the value of the first attribute with the given name, or
// appends a new attribute when none exists. Setting an attribute to its
// current value is a no-op, which keeps repeated scans byte-identical.
func (t *Tag) SetAttr(name, value string) {
	name = strings.ToLower(name)
	for i, sp := range t.spans {
		if sp.name != name {
			continue
		}
		if sp.valStart < 0 && value == "" {
			return
		}
		if sp.valStart >= 0 && html.UnescapeString(string(t.raw[sp.valStart:sp.valEnd])) == value {
			return
		}
		if t.replaced == nil {
			t.replaced = make(map[int]string)
		}
		t.replaced[i] = value
		return
	}

	for i, a := range t.added {
		if a.Key == name {
			t.added[i].Val = value
			return
		}
	}
	t.added = append(t.added, html.Attribute{Key: name, Val: value})
}

// Modified reports whether any SetAttr call changed the tag.
func (t *Tag) Modified() bool {
	return len(t.replaced) > 0 || len(t.added) > 0
}

// render reassembles the tag. Unmodified tags are returned as their original
// bytes; modified tags splice new values into the original bytes so that
// untouched attributes, quoting, and spacing survive unchanged.
func (t *Tag) render() []byte {
	if !t.Modified() {
		return t.raw
	}

	var b bytes.Buffer
	b.Grow(len(t.raw) + 64)

	last := 0
	for i, sp := range t.spans {
		val, ok := t.replaced[i]
		if !ok {
			continue
		}
		switch {
		case sp.valStart >= 0 && sp.quote != 0:
			b.Write(t.raw[last:sp.valStart])
			b.WriteString(html.EscapeString(val))
			last = sp.valEnd
		case sp.valStart >= 0:
			// Unquoted value gets requoted.
			b.Write(t.raw[last:sp.valStart])
			b.WriteByte('"')
			b.WriteString(html.EscapeString(val))
			b.WriteByte('"')
			last = sp.valEnd
		default:
			// Valueless attribute gains a value.
			b.Write(t.raw[last:sp.keyEnd])
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(val))
			b.WriteByte('"')
			last = sp.keyEnd
		}
	}

	insert := len(t.raw) - 1
	if len(t.raw) >= 2 && t.raw[len(t.raw)-2] == '/' {
		insert = len(t.raw) - 2
	}
	if last < insert {
		b.Write(t.raw[last:insert])
	}

	for _, a := range t.added {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}

	b.Write(t.raw[insert:])
	return b.Bytes()
}
