package transform

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/conneroisu/sitepipe/internal/stage"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"
)

// Usage is the set of selectors names found in markup.
type Usage struct {
	Classes map[string]bool
	IDs     map[string]bool
	Tags    map[string]bool
}

// NewUsage returns an empty usage set. The document root elements always
// count as used.
func NewUsage() *Usage {
	return &Usage{
		Classes: make(map[string]bool),
		IDs:     make(map[string]bool),
		Tags:    map[string]bool{"html": true, "body": true},
	}
}

// Scan records every tag, class and id in an HTML document.
func (u *Usage) Scan(r io.Reader) error {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			u.Tags[strings.ToLower(string(name))] = true
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "class":
					for _, class := range strings.Fields(string(val)) {
						u.Classes[class] = true
					}
				case "id":
					if id := strings.TrimSpace(string(val)); id != "" {
						u.IDs[id] = true
					}
				}
			}
		}
	}
}

// conditional group rules are purged recursively and dropped when empty;
// every other at-rule is kept as is.
var groupRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@document":  true,
	"@layer":     true,
	"@container": true,
}

// Purger removes style rules whose selectors reference names absent from
// the scanned markup.
type Purger struct {
	usage    *Usage
	safelist map[string]bool
}

// NewPurger creates a purger. Safelist entries are bare names or names
// prefixed with "." or "#"; a selector mentioning one is always kept.
func NewPurger(usage *Usage, safelist []string) *Purger {
	p := &Purger{usage: usage, safelist: make(map[string]bool, len(safelist))}
	for _, name := range safelist {
		name = strings.TrimLeft(strings.TrimSpace(name), ".#")
		if name != "" {
			p.safelist[name] = true
		}
	}
	return p
}

// Purge returns src without the unused rules.
func (p *Purger) Purge(src []byte) ([]byte, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	return []byte(p.rules(toks)), nil
}

func (p *Purger) rules(toks []token) string {
	var out []string
	for _, r := range splitRules(toks) {
		switch {
		case r.atKeyword == "":
			if kept := p.styleRule(r); kept != "" {
				out = append(out, kept)
			}
		case r.hasBlock && groupRules[r.atKeyword]:
			inner := p.rules(r.block)
			if strings.TrimSpace(inner) != "" {
				out = append(out, strings.TrimSpace(render(r.prelude))+"{"+inner+"}")
			}
		default:
			out = append(out, r.String())
		}
	}
	return strings.Join(out, "\n")
}

func (p *Purger) styleRule(r rule) string {
	if !r.hasBlock {
		return ""
	}
	var kept []string
	for _, sel := range splitSelectors(r.prelude) {
		if p.keep(sel) {
			kept = append(kept, strings.TrimSpace(render(sel)))
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, ",") + "{" + render(r.block) + "}"
}

// keep reports whether every class, id and type selector outside of
// functional pseudo-classes and attribute selectors is used or safelisted.
func (p *Purger) keep(sel []token) bool {
	depth := 0
	for i, t := range sel {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
			continue
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
			continue
		}
		if depth > 0 {
			continue
		}

		switch t.tt {
		case css.HashToken:
			if !p.used(p.usage.IDs, unescape(strings.TrimPrefix(t.data, "#"))) {
				return false
			}
		case css.IdentToken:
			prev := previous(sel, i)
			switch {
			case prev != nil && prev.tt == css.DelimToken && prev.data == ".":
				if !p.used(p.usage.Classes, unescape(t.data)) {
					return false
				}
			case prev != nil && prev.tt == css.ColonToken:
				// pseudo-class or pseudo-element
			default:
				if !p.used(p.usage.Tags, strings.ToLower(unescape(t.data))) {
					return false
				}
			}
		}
	}
	return true
}

func (p *Purger) used(set map[string]bool, name string) bool {
	return set[name] || p.safelist[name]
}

func previous(toks []token, i int) *token {
	if i == 0 {
		return nil
	}
	return &toks[i-1]
}

// unescape resolves CSS escapes in an identifier, e.g. "md\:flex" or
// "\31 0".
func unescape(ident string) string {
	if !strings.Contains(ident, `\`) {
		return ident
	}

	var b strings.Builder
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		if c != '\\' || i+1 == len(ident) {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(ident) && j-i <= 6 && isHex(ident[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(ident[j])
			i = j
			continue
		}

		code, err := strconv.ParseUint(ident[i+1:j], 16, 32)
		if err != nil || code == 0 || code > 0x10FFFF {
			code = 0xFFFD
		}
		b.WriteRune(rune(code))
		if j < len(ident) && ident[j] == ' ' {
			j++
		}
		i = j - 1
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// Purge removes unused rules from the matched stylesheets in place, using
// the markup files matched by content as the usage source.
func Purge(content []string, safelist []string) stage.Transform {
	return func(_ context.Context, files []string) error {
		pages, err := stage.Match(content...)
		if err != nil {
			return err
		}

		usage := NewUsage()
		for _, page := range pages {
			data, err := stage.ReadFile(page)
			if err != nil {
				return err
			}
			if err := usage.Scan(bytes.NewReader(data)); err != nil {
				return err
			}
		}

		purger := NewPurger(usage, safelist)
		for _, file := range files {
			src, err := stage.ReadFile(file)
			if err != nil {
				return err
			}
			out, err := purger.Purge(src)
			if err != nil {
				return err
			}
			if err := stage.WriteFile(file, out); err != nil {
				return err
			}
		}
		return nil
	}
}
