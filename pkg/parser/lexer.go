package parser

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokLBrace
	tokRBrace
	tokSlash
	tokArrow
	tokPlus
	tokComma
)

type token struct {
	kind tokenKind
	text string
	line int
}

// stripComments removes ";;;" doc lines and ";;" inline comments, quote-aware.
func stripComments(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ";;;") {
		return ""
	}
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"':
			inQuote = !inQuote
		case !inQuote && line[i] == ';' && i+1 < len(line) && line[i+1] == ';':
			return line[:i]
		}
	}
	return line
}

// lex tokenizes the body (header already removed). firstLine is the
// 1-based source line the body starts on, so errors point at real lines.
func lex(body string, firstLine int) ([]token, *ParseError) {
	var toks []token
	lines := strings.Split(body, "\n")
	for li, rawLine := range lines {
		lineNo := firstLine + li
		line := stripComments(rawLine)
		i := 0
		for i < len(line) {
			c := line[i]
			switch {
			case c == ' ' || c == '\t' || c == '\r':
				i++
			case c == '{':
				toks = append(toks, token{tokLBrace, "{", lineNo})
				i++
			case c == '}':
				toks = append(toks, token{tokRBrace, "}", lineNo})
				i++
			case c == '/':
				toks = append(toks, token{tokSlash, "/", lineNo})
				i++
			case c == '+':
				toks = append(toks, token{tokPlus, "+", lineNo})
				i++
			case c == ',':
				toks = append(toks, token{tokComma, ",", lineNo})
				i++
			case c == '-' && i+1 < len(line) && line[i+1] == '>':
				toks = append(toks, token{tokArrow, "->", lineNo})
				i += 2
			case c == '"':
				end := strings.IndexByte(line[i+1:], '"')
				if end < 0 {
					return nil, errAt(KindSyntax, lineNo, "unterminated string literal")
				}
				toks = append(toks, token{tokString, line[i+1 : i+1+end], lineNo})
				i += end + 2
			default:
				start := i
				for i < len(line) && !strings.ContainsRune(" \t\r{}/+,\"", rune(line[i])) {
					// "->" terminates a word; a lone "-" does not.
					if line[i] == '-' && i+1 < len(line) && line[i+1] == '>' {
						break
					}
					i++
				}
				word := norm.NFC.String(line[start:i])
				toks = append(toks, token{tokWord, word, lineNo})
			}
		}
	}
	return toks, nil
}
