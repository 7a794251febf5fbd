// Package parser turns raw .ops source text into a Program. It is a pure
// transform: no I/O, no side effects, same bytes in, same Program out.
//
// Grammar:
//
//	type Name { field, field, ... }
//	voice Name / { step -> step -> ... }
//	voice Name / "literal"
//
// with an optional signed header block delimited by "---" lines, ";;;"
// file-level doc comments and ";;" inline comments.
package parser

import (
	"strings"
)

// Parse parses one source file. The returned error is always a *ParseError.
func Parse(src []byte) (*Program, error) {
	header, body, bodyLine, perr := splitHeader(string(src))
	if perr != nil {
		return nil, perr
	}
	if perr := checkBraces(body, bodyLine); perr != nil {
		return nil, perr
	}
	toks, perr := lex(body, bodyLine)
	if perr != nil {
		return nil, perr
	}

	prog := &Program{
		Header: header,
		Types:  make(map[string]*TypeDef),
		Voices: make(map[string]*VoiceDef),
	}
	p := &tokenParser{toks: toks}
	for !p.done() {
		t := p.peek()
		switch {
		case t.kind == tokWord && t.text == "type":
			def, perr := p.parseType()
			if perr != nil {
				return nil, perr
			}
			if perr := declare(prog, def.Name, t.line); perr != nil {
				return nil, perr
			}
			prog.Types[def.Name] = def
		case t.kind == tokWord && t.text == "voice":
			def, perr := p.parseVoice()
			if perr != nil {
				return nil, perr
			}
			if perr := declare(prog, def.Name, t.line); perr != nil {
				return nil, perr
			}
			prog.Voices[def.Name] = def
		default:
			return nil, errAt(KindSyntax, t.line, "expected 'type' or 'voice', got %q", t.text)
		}
	}
	return prog, nil
}

// declare enforces name uniqueness across both definition kinds.
func declare(prog *Program, name string, line int) *ParseError {
	if _, ok := prog.Types[name]; ok {
		return errAt(KindDuplicateDefinition, line, "name %q defined twice", name)
	}
	if _, ok := prog.Voices[name]; ok {
		return errAt(KindDuplicateDefinition, line, "name %q defined twice", name)
	}
	return nil
}

// splitHeader extracts the optional "---" delimited header. An opened but
// unterminated block is HeaderMalformed.
func splitHeader(src string) (*Header, string, int, *ParseError) {
	lines := strings.Split(src, "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";;;") {
			continue
		}
		if trimmed == "---" {
			start = i
		}
		break
	}
	if start < 0 {
		return nil, src, 1, nil
	}

	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, "", 0, errAt(KindHeaderMalformed, start+1, "unterminated header block")
	}

	header := &Header{}
	for i := start + 1; i < end; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, "", 0, errAt(KindHeaderMalformed, i+1, "header line %q is not key: value", line)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "signature":
			header.Signature = value
		case "ca":
			header.CA = value
		case "realm":
			header.Realm = value
		case "format":
			header.Format = value
		}
	}
	return header, strings.Join(lines[end+1:], "\n"), end + 2, nil
}

// checkBraces rejects unbalanced braces before parsing begins, so nesting
// errors surface with the right kind instead of as generic syntax noise.
func checkBraces(body string, firstLine int) *ParseError {
	depth := 0
	inQuote := false
	for li, rawLine := range strings.Split(body, "\n") {
		line := stripComments(rawLine)
		for i := 0; i < len(line); i++ {
			switch {
			case line[i] == '"':
				inQuote = !inQuote
			case inQuote:
			case line[i] == '{':
				depth++
			case line[i] == '}':
				depth--
				if depth < 0 {
					return errAt(KindUnbalancedBraces, firstLine+li, "unexpected '}'")
				}
			}
		}
		inQuote = false
	}
	if depth != 0 {
		return errAt(KindUnbalancedBraces, firstLine, "%d unclosed brace(s)", depth)
	}
	return nil
}

type tokenParser struct {
	toks []token
	pos  int
}

func (p *tokenParser) done() bool { return p.pos >= len(p.toks) }

func (p *tokenParser) peek() token { return p.toks[p.pos] }

func (p *tokenParser) next() token {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *tokenParser) expect(kind tokenKind, what string) (token, *ParseError) {
	if p.done() {
		last := p.toks[len(p.toks)-1]
		return token{}, errAt(KindSyntax, last.line, "unexpected end of file, expected %s", what)
	}
	t := p.next()
	if t.kind != kind {
		return token{}, errAt(KindSyntax, t.line, "expected %s, got %q", what, t.text)
	}
	return t, nil
}

// parseType parses: type Name { field, field, ... }
func (p *tokenParser) parseType() (*TypeDef, *ParseError) {
	p.next() // "type"
	name, perr := p.expect(tokWord, "type name")
	if perr != nil {
		return nil, perr
	}
	if _, perr := p.expect(tokLBrace, "'{'"); perr != nil {
		return nil, perr
	}
	def := &TypeDef{Name: name.text}
	for {
		if p.done() {
			return nil, errAt(KindSyntax, name.line, "unexpected end of file in type %q", name.text)
		}
		t := p.next()
		switch t.kind {
		case tokRBrace:
			return def, nil
		case tokComma, tokPlus:
			// field separators
		case tokWord:
			def.Fields = append(def.Fields, t.text)
		default:
			return nil, errAt(KindSyntax, t.line, "unexpected %q in type %q", t.text, name.text)
		}
	}
}

// parseVoice parses: voice Name / <"literal" | number | { chain }>
func (p *tokenParser) parseVoice() (*VoiceDef, *ParseError) {
	p.next() // "voice"
	name, perr := p.expect(tokWord, "voice name")
	if perr != nil {
		return nil, perr
	}
	if _, perr := p.expect(tokSlash, "'/'"); perr != nil {
		return nil, perr
	}
	if p.done() {
		return nil, errAt(KindSyntax, name.line, "voice %q has no body", name.text)
	}
	t := p.next()
	switch t.kind {
	case tokString:
		return &VoiceDef{Name: name.text, Literal: t.text, IsLit: true}, nil
	case tokWord:
		if isNumeric(t.text) {
			return &VoiceDef{Name: name.text, Literal: t.text, IsLit: true}, nil
		}
		return nil, errAt(KindSyntax, t.line, "voice %q body must be a literal or chain", name.text)
	case tokLBrace:
		chain, perr := p.parseChain(name.line)
		if perr != nil {
			return nil, perr
		}
		return &VoiceDef{Name: name.text, Chain: chain}, nil
	default:
		return nil, errAt(KindSyntax, t.line, "voice %q body must be a literal or chain", name.text)
	}
}

// parseChain parses steps up to the matching '}'. The opening '{' has
// already been consumed. "->" and "+" both separate steps.
func (p *tokenParser) parseChain(openLine int) (*Chain, *ParseError) {
	chain := &Chain{}
	for {
		if p.done() {
			return nil, errAt(KindSyntax, openLine, "unexpected end of file in chain")
		}
		t := p.next()
		switch t.kind {
		case tokRBrace:
			return chain, nil
		case tokArrow, tokPlus:
			// step separators
		case tokString:
			chain.Steps = append(chain.Steps, Step{Kind: StepLiteral, Literal: t.text})
		case tokWord:
			if isNumeric(t.text) {
				chain.Steps = append(chain.Steps, Step{Kind: StepLiteral, Literal: t.text})
			} else {
				chain.Steps = append(chain.Steps, Step{Kind: StepRef, Ref: t.text})
			}
		case tokLBrace:
			nested, perr := p.parseChain(t.line)
			if perr != nil {
				return nil, perr
			}
			chain.Steps = append(chain.Steps, Step{Kind: StepChain, Nested: nested})
		default:
			return nil, errAt(KindSyntax, t.line, "unexpected %q in chain", t.text)
		}
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		if len(s) == 1 {
			return false
		}
		start = 1
	}
	dot := false
	for i := start; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
		case s[i] == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
