package sparql

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokLang
	tokHatHat
	tokInteger
	tokDecimal
	tokDouble
	tokPunct
	tokWord
)

type token struct {
	typ tokenType
	val string
	pos int
}

// is reports whether t is the keyword w, compared case-insensitively.
func (t token) is(w string) bool {
	return t.typ == tokWord && strings.EqualFold(t.val, w)
}

func (t token) punct(p string) bool {
	return t.typ == tokPunct && t.val == p
}

type lexer struct {
	src string
	pos int
}

// lex splits src into tokens, ending with a tokEOF token.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.typ == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) errorf(pos int, msg string) error {
	return &SyntaxError{Offset: pos, Message: msg}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{typ: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '<':
		if end := strings.IndexByte(l.src[l.pos+1:], '>'); end >= 0 {
			body := l.src[l.pos+1 : l.pos+1+end]
			if !strings.ContainsAny(body, " \t\n\r<\"{}|^`\\") {
				l.pos += end + 2
				return token{typ: tokIRI, val: body, pos: start}, nil
			}
		}
		l.pos++
		return token{typ: tokPunct, val: "<", pos: start}, nil
	case c == '?' || c == '$':
		l.pos++
		name := l.scanWhile(isNameChar)
		if name == "" {
			return token{typ: tokPunct, val: string(c), pos: start}, nil
		}
		return token{typ: tokVar, val: name, pos: start}, nil
	case c == '_' && strings.HasPrefix(l.src[l.pos:], "_:"):
		l.pos += 2
		label := strings.TrimRight(l.scanWhile(isLocalChar), ".")
		l.pos = start + 2 + len(label)
		if label == "" {
			return token{}, l.errorf(start, "empty blank node label")
		}
		return token{typ: tokBlank, val: label, pos: start}, nil
	case c == '"' || c == '\'':
		s, err := l.scanString()
		if err != nil {
			return token{}, err
		}
		return token{typ: tokString, val: s, pos: start}, nil
	case c == '@':
		l.pos++
		tag := l.scanWhile(func(r rune) bool { return r == '-' || isLetter(r) || unicode.IsDigit(r) })
		if tag == "" {
			return token{}, l.errorf(start, "empty language tag")
		}
		return token{typ: tokLang, val: tag, pos: start}, nil
	case c == '^' && strings.HasPrefix(l.src[l.pos:], "^^"):
		l.pos += 2
		return token{typ: tokHatHat, val: "^^", pos: start}, nil
	case isDigit(c) || ((c == '+' || c == '-' || c == '.') && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.scanNumber(), nil
	case c == ':' || isLetterByte(c) || c >= utf8.RuneSelf:
		return l.scanName()
	}
	l.pos++
	return token{typ: tokPunct, val: string(c), pos: start}, nil
}

func (l *lexer) scanWhile(ok func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !ok(r) {
			break
		}
		l.pos += size
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanName() (token, error) {
	start := l.pos
	prefix := l.scanWhile(isLocalChar)
	if l.pos < len(l.src) && l.src[l.pos] == ':' {
		l.pos++
		local := strings.TrimRight(l.scanWhile(func(r rune) bool { return isLocalChar(r) || r == ':' }), ".")
		l.pos = start + len(prefix) + 1 + len(local)
		return token{typ: tokPName, val: prefix + ":" + local, pos: start}, nil
	}
	word := strings.TrimRight(prefix, ".")
	l.pos = start + len(word)
	if word == "" {
		return token{}, l.errorf(start, "unexpected character")
	}
	return token{typ: tokWord, val: word, pos: start}, nil
}

func (l *lexer) scanNumber() token {
	start := l.pos
	if c := l.src[l.pos]; c == '+' || c == '-' {
		l.pos++
	}
	typ := tokInteger
	l.scanDigits()
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		typ = tokDecimal
		l.pos++
		l.scanDigits()
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			typ = tokDouble
			l.scanDigits()
		} else {
			l.pos = save
		}
	}
	return token{typ: typ, val: l.src[start:l.pos], pos: start}
}

func (l *lexer) scanDigits() {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) scanString() (string, error) {
	start := l.pos
	q := l.src[l.pos]
	long := strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3))
	if long {
		l.pos += 3
	} else {
		l.pos++
	}
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case long && strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3)):
			l.pos += 3
			return b.String(), nil
		case !long && c == q:
			l.pos++
			return b.String(), nil
		case !long && (c == '\n' || c == '\r'):
			return "", l.errorf(l.pos, "line break in short string")
		case c == '\\':
			r, err := l.scanEscape()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", l.errorf(start, "unterminated string")
}

func (l *lexer) scanEscape() (rune, error) {
	at := l.pos
	if l.pos+1 >= len(l.src) {
		return 0, l.errorf(at, "dangling escape")
	}
	c := l.src[l.pos+1]
	l.pos += 2
	switch c {
	case 't':
		return '\t', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case '"', '\'', '\\':
		return rune(c), nil
	case 'u', 'U':
		n := 4
		if c == 'U' {
			n = 8
		}
		if l.pos+n > len(l.src) {
			return 0, l.errorf(at, "short unicode escape")
		}
		v, err := strconv.ParseUint(l.src[l.pos:l.pos+n], 16, 32)
		if err != nil {
			return 0, l.errorf(at, "bad unicode escape")
		}
		l.pos += n
		return rune(v), nil
	}
	return 0, l.errorf(at, "unknown escape \\"+string(c))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetterByte(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isLetter(r rune) bool { return unicode.IsLetter(r) }

func isNameChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLocalChar(r rune) bool {
	return isNameChar(r) || r == '-' || r == '.'
}

var orderByPattern = regexp.MustCompile(`(?i)\border\s+by\b`)

// HasOrderBy reports whether query asks for ordered output. Keywords
// inside IRIs, strings and comments are ignored; text the lexer cannot
// tokenize falls back to a plain pattern match.
func HasOrderBy(query string) bool {
	toks, err := lex(query)
	if err != nil {
		return orderByPattern.MatchString(query)
	}
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].is("ORDER") && toks[i+1].is("BY") {
			return true
		}
	}
	return false
}
