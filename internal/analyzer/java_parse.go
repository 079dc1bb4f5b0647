package analyzer

import (
	"fmt"
	"strconv"
	"strings"
)

type jTokKind int

const (
	jEOF jTokKind = iota
	jIdent
	jNumber
	jString
	jPunct
)

type jToken struct {
	kind jTokKind
	text string
	off  int
	end  int
	line int
}

// Longest first.
var jOperators = []string{
	">>>=", "<<=", ">>=", "...", "->", "::", "++", "--", "&&", "||",
	"==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<",
}

var jAssignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

var jModifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "static": true, "final": true,
	"abstract": true, "native": true, "synchronized": true, "transient": true,
	"volatile": true, "strictfp": true, "default": true, "sealed": true,
}

// Words that never start a type.
var jReserved = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true, "try": true,
	"catch": true, "finally": true, "switch": true, "case": true, "default": true,
	"return": true, "break": true, "continue": true, "throw": true, "new": true,
	"this": true, "super": true, "null": true, "true": true, "false": true,
	"assert": true, "synchronized": true, "instanceof": true, "yield": true,
	"class": true, "interface": true, "enum": true, "import": true, "package": true,
}

func isJIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isJIdentPart(c byte) bool {
	return isJIdentStart(c) || (c >= '0' && c <= '9')
}

// tokenizeJava splits comment-free Java source into tokens.
func tokenizeJava(code string) ([]jToken, error) {
	var toks []jToken
	line := 1
	for i := 0; i < len(code); {
		c := code[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			i++
		case isJIdentStart(c):
			j := i + 1
			for j < len(code) && isJIdentPart(code[j]) {
				j++
			}
			toks = append(toks, jToken{kind: jIdent, text: code[i:j], off: i, end: j, line: line})
			i = j
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(code) && code[i+1] >= '0' && code[i+1] <= '9':
			j := i + 1
			for j < len(code) {
				d := code[j]
				if isJIdentPart(d) || d == '.' {
					j++
					continue
				}
				if (d == '+' || d == '-') && (code[j-1] == 'e' || code[j-1] == 'E') && !strings.HasPrefix(code[i:], "0x") {
					j++
					continue
				}
				break
			}
			toks = append(toks, jToken{kind: jNumber, text: code[i:j], off: i, end: j, line: line})
			i = j
		case c == '"' || c == '\'':
			end := skipLiteral(code, i)
			if end < 0 {
				return nil, &syntaxError{Line: line, Msg: "unterminated string literal"}
			}
			toks = append(toks, jToken{kind: jString, text: code[i : end+1], off: i, end: end + 1, line: line})
			line += strings.Count(code[i:end+1], "\n")
			i = end + 1
		default:
			op := ""
			for _, o := range jOperators {
				if strings.HasPrefix(code[i:], o) {
					op = o
					break
				}
			}
			if op == "" {
				if !strings.ContainsRune("{}()[];,.=<>!~?:+-*/&|^%@", rune(c)) {
					return nil, &syntaxError{Line: line, Msg: fmt.Sprintf("illegal character: '%c'", c)}
				}
				op = string(c)
			}
			toks = append(toks, jToken{kind: jPunct, text: op, off: i, end: i + len(op), line: line})
			i += len(op)
		}
	}
	return toks, nil
}

type jKind int

const (
	jClass jKind = iota
	jMethod
	jBlock
	jLocal
	jPrint
	jAssign
	jExpr
	jIf
	jFor
	jForEach
	jWhile
	jDo
	jTry
	jCatch
	jSwitch
	jReturn
	jOther
)

// jVar is a declared name: a local, a parameter or a catch parameter.
type jVar struct {
	typ       string
	base      string
	name      string
	dims      bool
	init      string
	arraySize int
}

type jStmt struct {
	kind     jKind
	line     int
	name     string
	text     string
	target   string
	op       string
	value    string
	vars     []jVar
	body     []*jStmt
	orelse   []*jStmt
	handlers []*jStmt
}

// jParser is a tolerant recursive-descent reader for Java. It recognises
// the statement structure and keeps expressions as text.
type jParser struct {
	src  string
	toks []jToken
	pos  int
}

func parseJava(code string) ([]*jStmt, error) {
	toks, err := tokenizeJava(code)
	if err != nil {
		return nil, err
	}
	p := &jParser{src: code, toks: toks}
	return p.unit()
}

func (p *jParser) peekAt(n int) jToken {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return jToken{kind: jEOF, off: len(p.src), end: len(p.src), line: p.lastLine()}
}

func (p *jParser) peek() jToken { return p.peekAt(0) }

func (p *jParser) at(text string) bool {
	t := p.peek()
	return (t.kind == jPunct || t.kind == jIdent) && t.text == text
}

func (p *jParser) eof() bool { return p.pos >= len(p.toks) }

func (p *jParser) lastLine() int {
	if len(p.toks) == 0 {
		return 1
	}
	return p.toks[len(p.toks)-1].line
}

func (p *jParser) errorf(format string, args ...any) error {
	return &syntaxError{Line: p.peek().line, Msg: fmt.Sprintf(format, args...)}
}

func (p *jParser) expect(text string) error {
	if !p.at(text) {
		if p.eof() {
			return p.errorf("reached end of file while parsing")
		}
		return p.errorf("'%s' expected", text)
	}
	p.pos++
	return nil
}

// text is the source between tokens [from, to), collapsed onto one line.
func (p *jParser) text(from, to int) string {
	if from >= to || from >= len(p.toks) {
		return ""
	}
	return collapse(p.src[p.toks[from].off:p.toks[to-1].end])
}

// matchTok returns the index of the token closing the bracket at open.
func (p *jParser) matchTok(open int) int {
	depth := 0
	for i := open; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.kind != jPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// scanUntil returns the index of the first stop token at bracket depth 0,
// or -1 when the enclosing block or the input ends first.
func (p *jParser) scanUntil(stops ...string) int {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.kind != jPunct {
			continue
		}
		if depth == 0 {
			for _, s := range stops {
				if t.text == s {
					return i
				}
			}
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return -1
			}
			depth--
		}
	}
	return -1
}

// parenExpr reads `( ... )` and returns the inner text.
func (p *jParser) parenExpr(after string) (string, error) {
	if !p.at("(") {
		return "", p.errorf("'(' expected after '%s'", after)
	}
	open := p.pos
	close := p.matchTok(open)
	if close < 0 {
		return "", p.errorf("'(' was never closed")
	}
	p.pos = close + 1
	return p.text(open+1, close), nil
}

func (p *jParser) skipAnnotations() {
	for p.at("@") && !(p.peekAt(1).text == "interface") {
		p.pos += 2
		for p.at(".") && p.peekAt(1).kind == jIdent {
			p.pos += 2
		}
		if p.at("(") {
			if close := p.matchTok(p.pos); close > 0 {
				p.pos = close + 1
			}
		}
	}
}

func (p *jParser) skipModifiers() {
	for {
		p.skipAnnotations()
		t := p.peek()
		if t.kind != jIdent || !jModifiers[t.text] {
			return
		}
		// `default:` and `synchronized (x)` are statements, not modifiers.
		if next := p.peekAt(1).text; next == ":" || next == "->" || next == "(" {
			return
		}
		p.pos++
	}
}

// skipAngles moves past a balanced <...> group. It gives up at anything that
// cannot appear inside type arguments.
func (p *jParser) skipAngles() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].text {
		case "<":
			depth++
		case ">":
			depth--
			if depth == 0 {
				p.pos = i + 1
				return true
			}
		case ";", "{", "}", "(", ")", "=", "==", "&&", "||":
			return false
		}
	}
	return false
}

// parseType reads a type at the cursor. On failure the cursor is unchanged.
func (p *jParser) parseType() (typ, base string, ok bool) {
	start := p.pos
	t := p.peek()
	if t.kind != jIdent || jReserved[t.text] {
		return "", "", false
	}
	base = t.text
	p.pos++
	for p.at(".") && p.peekAt(1).kind == jIdent {
		base = p.peekAt(1).text
		p.pos += 2
	}
	if p.at("<") && !p.skipAngles() {
		p.pos = start
		return "", "", false
	}
	for p.at(".") && p.peekAt(1).kind == jIdent {
		base = p.peekAt(1).text
		p.pos += 2
	}
	for p.at("[") && p.peekAt(1).text == "]" {
		p.pos += 2
	}
	if p.at("...") {
		p.pos++
	}
	return p.text(start, p.pos), base, true
}

func (p *jParser) unit() ([]*jStmt, error) {
	var out []*jStmt
	for !p.eof() {
		if p.at("package") || p.at("import") {
			end := p.scanUntil(";")
			if end < 0 {
				return nil, p.errorf("';' expected")
			}
			p.pos = end + 1
			continue
		}
		s, err := p.member(true)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// member reads one class-body declaration. At top level anything that is
// not a declaration is read as a statement, so bare snippets still parse.
func (p *jParser) member(topLevel bool) (*jStmt, error) {
	start := p.pos
	p.skipModifiers()

	switch {
	case p.at(";"):
		p.pos++
		return nil, nil
	case p.at("{"):
		line := p.peek().line
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &jStmt{kind: jBlock, line: line, body: body}, nil
	case p.at("class"), p.at("interface"), p.at("enum"), p.at("@"),
		p.at("record") && p.peekAt(1).kind == jIdent && p.peekAt(2).text != "=":
		return p.classDecl()
	}

	if p.at("<") {
		p.skipAngles()
	}

	// Constructor: Name(...) { or Name(...) throws
	if t := p.peek(); t.kind == jIdent && !jReserved[t.text] && p.peekAt(1).text == "(" {
		if close := p.matchTok(p.pos + 1); close > 0 && close+1 < len(p.toks) {
			if next := p.toks[close+1].text; next == "{" || next == "throws" {
				return p.methodDecl()
			}
		}
	}

	mark := p.pos
	if _, _, ok := p.parseType(); ok && p.peek().kind == jIdent && p.peekAt(1).text == "(" {
		return p.methodDecl()
	}
	p.pos = mark

	if topLevel {
		p.pos = start
		return p.statement()
	}

	end := p.scanUntil(";")
	if end < 0 {
		return nil, p.errorf("<identifier> expected")
	}
	p.pos = end + 1
	return nil, nil
}

func (p *jParser) classDecl() (*jStmt, error) {
	if p.at("@") {
		p.pos++
	}
	kw := p.peek()
	p.pos++
	name := p.peek()
	if name.kind != jIdent {
		return nil, p.errorf("<identifier> expected")
	}
	p.pos++

	open := p.scanUntil("{")
	if open < 0 {
		return nil, p.errorf("'{' expected")
	}
	p.pos = open
	s := &jStmt{kind: jClass, line: kw.line, name: name.text}

	if kw.text == "enum" {
		close := p.matchTok(open)
		if close < 0 {
			return nil, p.errorf("reached end of file while parsing")
		}
		p.pos = close + 1
		return s, nil
	}

	p.pos++
	for !p.at("}") {
		if p.eof() {
			return nil, p.errorf("reached end of file while parsing")
		}
		m, err := p.member(false)
		if err != nil {
			return nil, err
		}
		if m != nil {
			s.body = append(s.body, m)
		}
	}
	p.pos++
	return s, nil
}

func (p *jParser) methodDecl() (*jStmt, error) {
	name := p.peek()
	p.pos++
	open := p.pos
	close := p.matchTok(open)
	if close < 0 {
		return nil, p.errorf("'(' was never closed")
	}
	s := &jStmt{kind: jMethod, line: name.line, name: name.text, vars: p.params(open+1, close)}
	p.pos = close + 1

	for p.at("[") && p.peekAt(1).text == "]" {
		p.pos += 2
	}
	if p.at("throws") {
		end := p.scanUntil("{", ";")
		if end < 0 {
			return nil, p.errorf("'{' expected")
		}
		p.pos = end
	}
	if p.at(";") {
		p.pos++
		return s, nil
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s.body = body
	return s, nil
}

// params splits the tokens of a parameter list into declared names.
func (p *jParser) params(from, to int) []jVar {
	var out []jVar
	depth, angle, start := 0, 0, from
	flush := func(end int) {
		if v, ok := p.param(start, end); ok {
			out = append(out, v)
		}
	}
	for i := from; i < to; i++ {
		switch p.toks[i].text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "<":
			angle++
		case ">":
			angle--
		case ",":
			if depth == 0 && angle == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(to)
	return out
}

func (p *jParser) param(from, to int) (jVar, bool) {
loop:
	for from < to {
		switch t := p.toks[from]; {
		case t.text == "final":
			from++
		case t.text == "@" && from+1 < to:
			from += 2
			if from < to && p.toks[from].text == "(" {
				from = p.matchTok(from) + 1
			}
		default:
			break loop
		}
	}
	if to-from < 2 {
		return jVar{}, false
	}
	v := jVar{}
	nameAt := to - 1
	for nameAt > from && p.toks[nameAt].text == "]" {
		v.dims = true
		nameAt -= 2
	}
	if nameAt <= from || p.toks[nameAt].kind != jIdent {
		return jVar{}, false
	}
	v.name = p.toks[nameAt].text
	v.typ = p.text(from, nameAt)
	v.base = jBaseType(v.typ)
	if strings.Contains(v.typ, "[") || strings.HasSuffix(v.typ, "...") {
		v.dims = true
	}
	return v, true
}

// jBaseType is the simple name of a type: java.util.List<String>[] -> List.
func jBaseType(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	typ = strings.TrimSuffix(strings.TrimSpace(typ), "...")
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	if f := strings.Fields(typ); len(f) > 0 {
		return f[len(f)-1]
	}
	return typ
}

func (p *jParser) block() ([]*jStmt, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var out []*jStmt
	for !p.at("}") {
		if p.eof() {
			return nil, p.errorf("reached end of file while parsing")
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	p.pos++
	return out, nil
}

// flatten unwraps a block into its statements.
func flatten(s *jStmt) []*jStmt {
	switch {
	case s == nil:
		return nil
	case s.kind == jBlock:
		return s.body
	}
	return []*jStmt{s}
}

func (p *jParser) statement() (*jStmt, error) {
	t := p.peek()
	line := t.line
	word := ""
	if t.kind == jIdent || t.kind == jPunct {
		word = t.text
	}

	switch word {
	case "{":
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &jStmt{kind: jBlock, line: line, body: body}, nil

	case ";":
		p.pos++
		return nil, nil

	case "if":
		p.pos++
		cond, err := p.parenExpr("if")
		if err != nil {
			return nil, err
		}
		then, err := p.statement()
		if err != nil {
			return nil, err
		}
		s := &jStmt{kind: jIf, line: line, text: cond, body: flatten(then)}
		if p.at("else") {
			elseLine := p.peek().line
			p.pos++
			alt, err := p.statement()
			if err != nil {
				return nil, err
			}
			s.orelse = flatten(alt)
			if len(s.orelse) == 0 {
				s.orelse = []*jStmt{{kind: jOther, line: elseLine}}
			}
		}
		return s, nil

	case "for":
		p.pos++
		return p.forStatement(line)

	case "while":
		p.pos++
		cond, err := p.parenExpr("while")
		if err != nil {
			return nil, err
		}
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		return &jStmt{kind: jWhile, line: line, text: cond, body: flatten(body)}, nil

	case "do":
		p.pos++
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		if err := p.expect("while"); err != nil {
			return nil, err
		}
		cond, err := p.parenExpr("while")
		if err != nil {
			return nil, err
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		return &jStmt{kind: jDo, line: line, text: cond, body: flatten(body)}, nil

	case "try":
		p.pos++
		return p.tryStatement(line)

	case "switch":
		p.pos++
		return p.switchStatement(line)

	case "return":
		p.pos++
		end := p.scanUntil(";")
		if end < 0 {
			return nil, p.errorf("';' expected")
		}
		s := &jStmt{kind: jReturn, line: line, text: p.text(p.pos, end)}
		p.pos = end + 1
		return s, nil

	case "break", "continue", "throw", "yield", "assert":
		end := p.scanUntil(";")
		if end < 0 {
			return nil, p.errorf("';' expected")
		}
		s := &jStmt{kind: jOther, line: line, text: p.text(p.pos, end)}
		p.pos = end + 1
		return s, nil

	case "synchronized":
		p.pos++
		if _, err := p.parenExpr("synchronized"); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &jStmt{kind: jBlock, line: line, body: body}, nil

	case "class", "interface", "enum":
		return p.classDecl()

	case "else":
		return nil, p.errorf("'else' without 'if'")
	case "catch", "finally":
		return nil, p.errorf("'%s' without 'try'", word)
	case "case":
		return nil, p.errorf("orphaned case")
	}

	if t.kind == jIdent && p.peekAt(1).text == ":" {
		p.pos += 2
		return p.statement()
	}
	if p.isLocalDecl() {
		s, err := p.localDecl()
		if err != nil {
			return nil, err
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		return s, nil
	}

	end := p.scanUntil(";")
	if end < 0 {
		return nil, p.errorf("';' expected")
	}
	s := p.expression(p.pos, end)
	s.line = line
	p.pos = end + 1
	return s, nil
}

func (p *jParser) skipLocalModifiers() {
	for {
		switch {
		case p.at("final"):
			p.pos++
		case p.at("@") && p.peekAt(1).text != "interface":
			p.skipAnnotations()
		default:
			return
		}
	}
}

func (p *jParser) isLocalDecl() bool {
	mark := p.pos
	defer func() { p.pos = mark }()

	p.skipLocalModifiers()
	if _, _, ok := p.parseType(); !ok {
		return false
	}
	name := p.peek()
	if name.kind != jIdent || jReserved[name.text] {
		return false
	}
	switch p.peekAt(1).text {
	case "=", ";", ",", "[", ":":
		return true
	}
	return false
}

// localDecl reads `Type a = x, b[] = {..}` and stops before the terminator.
func (p *jParser) localDecl() (*jStmt, error) {
	line := p.peek().line
	p.skipLocalModifiers()
	typ, base, ok := p.parseType()
	if !ok {
		return nil, p.errorf("<identifier> expected")
	}
	s := &jStmt{kind: jLocal, line: line}

	for {
		name := p.peek()
		if name.kind != jIdent {
			return nil, p.errorf("<identifier> expected")
		}
		p.pos++
		v := jVar{typ: typ, base: base, name: name.text, dims: strings.Contains(typ, "[")}
		for p.at("[") && p.peekAt(1).text == "]" {
			v.dims = true
			p.pos += 2
		}
		if p.at("=") {
			p.pos++
			start := p.pos
			end := p.declaratorEnd()
			if end < 0 {
				return nil, p.errorf("';' expected")
			}
			v.init = p.text(start, end)
			v.arraySize = p.arraySize(start, end)
			p.pos = end
		}
		s.vars = append(s.vars, v)
		if !p.at(",") {
			return s, nil
		}
		p.pos++
	}
}

// declaratorEnd finds the end of an initializer. A comma ends it only when
// another declarator follows, so `new HashMap<K, V>()` stays whole.
func (p *jParser) declaratorEnd() int {
	mark := p.pos
	defer func() { p.pos = mark }()
	for {
		end := p.scanUntil(",", ";", ":", ")")
		if end < 0 || p.toks[end].text != "," {
			return end
		}
		if end+2 < len(p.toks) && p.toks[end+1].kind == jIdent {
			switch p.toks[end+2].text {
			case "=", ",", ";", "[":
				return end
			}
		}
		p.pos = end + 1
	}
}

// arraySize reads the element count from `new T[n]` or `{a, b, c}`.
func (p *jParser) arraySize(from, to int) int {
	if from >= to {
		return 0
	}
	switch p.toks[from].text {
	case "new":
		for i := from + 1; i+2 < to; i++ {
			if p.toks[i].text == "[" && p.toks[i+1].kind == jNumber && p.toks[i+2].text == "]" {
				n, _ := strconv.Atoi(strings.TrimRight(p.toks[i+1].text, "lL"))
				return n
			}
			if p.toks[i].text == "{" {
				return p.arraySize(i, to)
			}
		}
	case "{":
		close := p.matchTok(from)
		if close < 0 || close == from+1 {
			return 0
		}
		n, depth := 1, 0
		for i := from + 1; i < close; i++ {
			switch p.toks[i].text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			case ",":
				if depth == 0 && i+1 < close {
					n++
				}
			}
		}
		return n
	}
	return 0
}

func (p *jParser) forStatement(line int) (*jStmt, error) {
	if !p.at("(") {
		return nil, p.errorf("'(' expected after 'for'")
	}
	open := p.pos
	close := p.matchTok(open)
	if close < 0 {
		return nil, p.errorf("'(' was never closed")
	}
	s := &jStmt{kind: jFor, line: line, text: p.text(open+1, close)}

	p.pos = open + 1
	if end := p.scanUntil(":"); end > 0 && end < close {
		s.kind = jForEach
	} else if p.isLocalDecl() {
		init, err := p.localDecl()
		if err != nil {
			return nil, err
		}
		s.vars = init.vars
	}

	p.pos = close + 1
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	s.body = flatten(body)
	return s, nil
}

func (p *jParser) tryStatement(line int) (*jStmt, error) {
	s := &jStmt{kind: jTry, line: line}
	resources := false
	if p.at("(") {
		close := p.matchTok(p.pos)
		if close < 0 {
			return nil, p.errorf("'(' was never closed")
		}
		s.text = p.text(p.pos+1, close)
		p.pos = close + 1
		resources = true
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s.body = body

	for p.at("catch") {
		catchLine := p.peek().line
		p.pos++
		if !p.at("(") {
			return nil, p.errorf("'(' expected after 'catch'")
		}
		close := p.matchTok(p.pos)
		if close < 0 {
			return nil, p.errorf("'(' was never closed")
		}
		c := &jStmt{kind: jCatch, line: catchLine, vars: p.params(p.pos+1, close)}
		p.pos = close + 1
		if c.body, err = p.block(); err != nil {
			return nil, err
		}
		s.handlers = append(s.handlers, c)
	}
	if p.at("finally") {
		p.pos++
		if s.orelse, err = p.block(); err != nil {
			return nil, err
		}
		if s.orelse == nil {
			s.orelse = []*jStmt{}
		}
	}
	if !resources && len(s.handlers) == 0 && s.orelse == nil {
		return nil, p.errorf("'catch' or 'finally' expected")
	}
	return s, nil
}

func (p *jParser) switchStatement(line int) (*jStmt, error) {
	expr, err := p.parenExpr("switch")
	if err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	s := &jStmt{kind: jSwitch, line: line, text: expr}
	for !p.at("}") {
		if p.eof() {
			return nil, p.errorf("reached end of file while parsing")
		}
		if p.at("case") || (p.at("default") && (p.peekAt(1).text == ":" || p.peekAt(1).text == "->")) {
			end := p.scanUntil(":", "->")
			if end < 0 {
				return nil, p.errorf("':' or '->' expected")
			}
			p.pos = end + 1
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			s.body = append(s.body, st)
		}
	}
	p.pos++
	return s, nil
}

// expression classifies the statement expression in tokens [from, to).
func (p *jParser) expression(from, to int) *jStmt {
	text := p.text(from, to)

	if to-from >= 6 && p.toks[from].text == "System" && p.toks[from+1].text == "." &&
		(p.toks[from+2].text == "out" || p.toks[from+2].text == "err") && p.toks[from+3].text == "." &&
		strings.HasPrefix(p.toks[from+4].text, "print") && p.toks[from+5].text == "(" {
		if close := p.matchTok(from + 5); close > 0 && close < to {
			return &jStmt{kind: jPrint, text: p.text(from+6, close)}
		}
	}

	depth := 0
	for i := from; i < to; i++ {
		t := p.toks[i]
		if t.kind != jPunct {
			continue
		}
		switch {
		case t.text == "(" || t.text == "[" || t.text == "{":
			depth++
		case t.text == ")" || t.text == "]" || t.text == "}":
			depth--
		case t.text == "->":
			i = to
		case depth == 0 && jAssignOps[t.text]:
			return &jStmt{kind: jAssign, text: text, target: p.text(from, i), op: t.text, value: p.text(i+1, to)}
		}
	}
	return &jStmt{kind: jExpr, text: text}
}
