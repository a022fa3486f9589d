// Package htmlscan provides a byte-preserving streaming pass over HTML
// fragments. Tokens outside the tags a caller modifies are emitted exactly
// as they appeared in the input, including malformed markup, comments,
// conditional comments, and script or style bodies.
package htmlscan

import (
	"bytes"

	"golang.org/x/net/html"
)

// Scan walks fragment token by token, invoking handle for every start and
// self-closing tag. The returned document contains the original bytes of
// every token, except tags whose attributes the handler changed via SetAttr.
//
// The *Tag passed to handle must not be retained after the callback returns.
func Scan(fragment []byte, handle func(*Tag)) []byte {
	z := html.NewTokenizer(bytes.NewReader(fragment))

	var out bytes.Buffer
	out.Grow(len(fragment) + 256)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// EOF. Any unconsumed tail (e.g. a truncated tag) passes
			// through untouched.
			out.Write(z.Raw())
			return out.Bytes()
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			tag := parseTag(raw, tt == html.SelfClosingTagToken)
			if tag == nil {
				out.Write(raw)
				continue
			}
			handle(tag)
			out.Write(tag.render())
		default:
			out.Write(z.Raw())
		}
	}
}
