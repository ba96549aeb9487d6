package transform

import (
	stderrors "errors"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type token struct {
	tt   css.TokenType
	data string
}

// tokenize lexes a stylesheet. Token data is copied out of the lexer buffer.
func tokenize(src []byte) ([]token, error) {
	l := css.NewLexer(parse.NewInputBytes(src))
	var toks []token
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !stderrors.Is(err, io.EOF) {
				return nil, err
			}
			return toks, nil
		}
		toks = append(toks, token{tt: tt, data: string(data)})
	}
}

func render(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.data)
	}
	return b.String()
}

// rule is one top-level item of a rule list: an at-rule or a style rule.
// Block is nil for statements such as @import ...; and holds the tokens
// between the braces otherwise.
type rule struct {
	atKeyword string
	prelude   []token
	block     []token
	hasBlock  bool
}

// splitRules cuts a token list into rules. Whitespace and comments between
// rules are dropped; an unterminated trailing rule keeps its tokens as
// prelude.
func splitRules(toks []token) []rule {
	var rules []rule
	i := 0
	for i < len(toks) {
		switch toks[i].tt {
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken, css.SemicolonToken:
			i++
			continue
		}

		r := rule{}
		if toks[i].tt == css.AtKeywordToken {
			r.atKeyword = strings.ToLower(toks[i].data)
		}

		start := i
		for i < len(toks) && toks[i].tt != css.LeftBraceToken && !(r.atKeyword != "" && toks[i].tt == css.SemicolonToken) {
			i++
		}
		r.prelude = toks[start:i]
		if i == len(toks) {
			rules = append(rules, r)
			break
		}
		if toks[i].tt == css.SemicolonToken {
			i++
			rules = append(rules, r)
			continue
		}

		end := matchingBrace(toks, i)
		r.hasBlock = true
		r.block = toks[i+1 : end]
		i = end + 1
		rules = append(rules, r)
	}
	return rules
}

// matchingBrace returns the index of the brace closing the one at open, or
// len(toks) when the block is unterminated.
func matchingBrace(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].tt {
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}

func (r rule) String() string {
	prelude := strings.TrimSpace(render(r.prelude))
	if !r.hasBlock {
		return prelude + ";"
	}
	return prelude + "{" + render(r.block) + "}"
}

// splitSelectors splits a selector list on top-level commas.
func splitSelectors(prelude []token) [][]token {
	var (
		selectors [][]token
		depth     int
		start     int
	)
	for i, t := range prelude {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				selectors = append(selectors, prelude[start:i])
				start = i + 1
			}
		}
	}
	return append(selectors, prelude[start:])
}
