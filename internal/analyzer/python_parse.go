package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

type pyKind int

const (
	pyOther pyKind = iota
	pyDef
	pyClass
	pyIf
	pyFor
	pyWhile
	pyTry
	pyBlock // with, except, finally, match, case
	pyReturn
	pyAssign
	pyAugAssign
	pyExpr
)

// pyStmt is one Python statement. Compound statements carry their nested
// suites; head is the text before the header colon (the whole statement for
// simple ones).
type pyStmt struct {
	kind pyKind
	line int
	head string

	name    string   // def, class
	params  []string // def
	cond    string   // if, while; for iterable
	target  string   // for
	targets []string // assign, augassign
	op      string   // augassign
	value   string   // assign, augassign, return

	elif    bool
	hasElse bool

	body     []*pyStmt
	orelse   []*pyStmt
	handlers []*pyStmt
}

type pyLine struct {
	indent int
	line   int
	text   string
}

var (
	pyDefRe       = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\((.*)\)\s*(?:->.*)?$`)
	pyClassRe     = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\(.*\))?$`)
	pyForRe       = regexp.MustCompile(`^(?:async\s+)?for\s+(.+?)\s+in\s+(.+)$`)
	pyAugAssignRe = regexp.MustCompile(`^([A-Za-z_][\w.]*(?:\[.*\])?)\s*(\*\*|//|>>|<<|\+|-|\*|/|%|@|&|\||\^)=\s*(.+)$`)
	pyIdentRe     = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	pyFirstWordRe = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

var pyCompoundKeywords = map[string]bool{
	"def": true, "class": true, "if": true, "elif": true, "else": true,
	"for": true, "while": true, "try": true, "except": true, "finally": true,
	"with": true, "async": true, "match": true, "case": true,
}

var pySimpleKeywords = map[string]bool{
	"pass": true, "break": true, "continue": true, "import": true, "from": true,
	"global": true, "nonlocal": true, "raise": true, "del": true, "assert": true,
}

// parsePython builds the statement tree of a module.
func parsePython(code string) ([]*pyStmt, error) {
	lines, err := pyLogicalLines(code)
	if err != nil {
		return nil, err
	}

	type frame struct {
		indent int
		body   *[]*pyStmt
	}

	var module []*pyStmt
	stack := []frame{{indent: 0, body: &module}}
	var pending *[]*pyStmt
	var pendingLine int
	var pendingHead string

	for _, ln := range lines {
		top := stack[len(stack)-1]

		switch {
		case pending != nil:
			if ln.indent <= top.indent {
				return nil, &syntaxError{Line: ln.line, Msg: fmt.Sprintf("expected an indented block after '%s' statement on line %d", pendingHead, pendingLine)}
			}
			stack = append(stack, frame{indent: ln.indent, body: pending})
			pending = nil
		case ln.indent > top.indent:
			return nil, &syntaxError{Line: ln.line, Msg: "unexpected indent"}
		case ln.indent < top.indent:
			for len(stack) > 1 && stack[len(stack)-1].indent > ln.indent {
				stack = stack[:len(stack)-1]
			}
			if stack[len(stack)-1].indent != ln.indent {
				return nil, &syntaxError{Line: ln.line, Msg: "unindent does not match any outer indentation level"}
			}
		}
		top = stack[len(stack)-1]

		word := pyFirstWordRe.FindString(ln.text)
		if !pyCompoundKeywords[word] || !isPyCompound(word, ln.text) {
			for _, part := range splitTopLevel(ln.text, ';') {
				if part = strings.TrimSpace(part); part == "" {
					continue
				}
				stmt, _, _, err := classifyPython(pyLine{indent: ln.indent, line: ln.line, text: part})
				if err != nil {
					return nil, err
				}
				*top.body = append(*top.body, stmt)
			}
			continue
		}

		stmt, inline, _, err := classifyPython(ln)
		if err != nil {
			return nil, err
		}

		target, err := attachPython(top.body, stmt, ln.line)
		if err != nil {
			return nil, err
		}

		if strings.TrimSpace(inline) == "" {
			pending = target
			pendingLine = ln.line
			pendingHead = pyFirstWordRe.FindString(stmt.head)
			continue
		}
		for _, part := range splitTopLevel(inline, ';') {
			if strings.TrimSpace(part) == "" {
				continue
			}
			child, _, childCompound, err := classifyPython(pyLine{indent: ln.indent, line: ln.line, text: strings.TrimSpace(part)})
			if err != nil {
				return nil, err
			}
			if childCompound {
				return nil, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			*target = append(*target, child)
		}
	}

	if pending != nil {
		return nil, &syntaxError{Line: pendingLine, Msg: fmt.Sprintf("expected an indented block after '%s' statement on line %d", pendingHead, pendingLine)}
	}
	return module, nil
}

// attachPython places stmt into body, or onto the statement it continues
// (elif, else, except, finally), and returns where its suite goes.
func attachPython(body *[]*pyStmt, stmt *pyStmt, line int) (*[]*pyStmt, error) {
	word := pyFirstWordRe.FindString(stmt.head)
	var prev *pyStmt
	if n := len(*body); n > 0 {
		prev = (*body)[n-1]
	}

	switch {
	case stmt.kind == pyIf && stmt.elif:
		tail := pyIfTail(prev)
		if tail == nil || tail.hasElse {
			return nil, &syntaxError{Line: line, Msg: "invalid syntax: 'elif' without matching 'if'"}
		}
		tail.orelse = append(tail.orelse, stmt)
		return &stmt.body, nil

	case word == "else":
		if tail := pyIfTail(prev); tail != nil {
			if tail.hasElse {
				return nil, &syntaxError{Line: line, Msg: "invalid syntax: duplicate 'else'"}
			}
			tail.hasElse = true
			return &tail.orelse, nil
		}
		if prev != nil && (prev.kind == pyFor || prev.kind == pyWhile || prev.kind == pyTry) {
			return &prev.orelse, nil
		}
		return nil, &syntaxError{Line: line, Msg: "invalid syntax: 'else' without matching statement"}

	case word == "except" || word == "finally":
		if prev == nil || prev.kind != pyTry {
			return nil, &syntaxError{Line: line, Msg: fmt.Sprintf("invalid syntax: '%s' without 'try'", word)}
		}
		prev.handlers = append(prev.handlers, stmt)
		return &stmt.body, nil
	}

	*body = append(*body, stmt)
	return &stmt.body, nil
}

// pyIfTail follows an if/elif chain to its last link.
func pyIfTail(s *pyStmt) *pyStmt {
	if s == nil || s.kind != pyIf {
		return nil
	}
	for !s.hasElse && len(s.orelse) == 1 && s.orelse[0].kind == pyIf && s.orelse[0].elif {
		s = s.orelse[0]
	}
	return s
}

// classifyPython parses one logical line. For compound statements inline is
// whatever follows the header colon on the same line.
func classifyPython(ln pyLine) (stmt *pyStmt, inline string, compound bool, err error) {
	text := ln.text
	word := pyFirstWordRe.FindString(text)
	stmt = &pyStmt{line: ln.line, head: text}

	if pyCompoundKeywords[word] && isPyCompound(word, text) {
		colon := headerColon(text)
		if colon < 0 {
			return nil, "", false, &syntaxError{Line: ln.line, Msg: "expected ':'"}
		}
		head := strings.TrimSpace(text[:colon])
		inline = text[colon+1:]
		stmt.head = head

		if word == "async" {
			word = strings.Fields(head + " x")[1]
		}

		switch word {
		case "def":
			m := pyDefRe.FindStringSubmatch(head)
			if m == nil {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyDef
			stmt.name = m[1]
			stmt.params = pyParams(m[2])
		case "class":
			m := pyClassRe.FindStringSubmatch(head)
			if m == nil {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyClass
			stmt.name = m[1]
		case "if", "elif", "while":
			cond := strings.TrimSpace(strings.TrimPrefix(head, word))
			if cond == "" {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyIf
			if word == "while" {
				stmt.kind = pyWhile
			}
			stmt.elif = word == "elif"
			stmt.cond = cond
		case "for":
			m := pyForRe.FindStringSubmatch(head)
			if m == nil {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyFor
			stmt.target = strings.TrimSpace(m[1])
			stmt.cond = strings.TrimSpace(m[2])
		case "try":
			if head != "try" {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyTry
		case "else", "finally":
			if head != word {
				return nil, "", false, &syntaxError{Line: ln.line, Msg: "invalid syntax"}
			}
			stmt.kind = pyBlock
		default:
			stmt.kind = pyBlock
		}
		return stmt, inline, true, nil
	}

	switch {
	case word == "return":
		stmt.kind = pyReturn
		stmt.value = strings.TrimSpace(strings.TrimPrefix(text, "return"))
	case pySimpleKeywords[word]:
		stmt.kind = pyOther
	default:
		if m := pyAugAssignRe.FindStringSubmatch(text); m != nil {
			stmt.kind = pyAugAssign
			stmt.targets = []string{m[1]}
			stmt.op = m[2]
			stmt.value = strings.TrimSpace(m[3])
			break
		}
		parts := splitAssignment(text)
		if len(parts) > 1 {
			stmt.kind = pyAssign
			for _, t := range parts[:len(parts)-1] {
				stmt.targets = append(stmt.targets, strings.TrimSpace(t))
			}
			stmt.value = strings.TrimSpace(parts[len(parts)-1])
			break
		}
		if strings.Contains(text, ":") && headerColon(text) > 0 && pyIdentRe.MatchString(strings.TrimSpace(text[:headerColon(text)])) {
			// bare annotation
			stmt.kind = pyOther
			break
		}
		stmt.kind = pyExpr
	}
	return stmt, "", false, nil
}

// isPyCompound rejects soft keywords (match, case) used as plain names.
func isPyCompound(word, text string) bool {
	if word != "match" && word != "case" {
		return true
	}
	rest := strings.TrimSpace(text[len(word):])
	if rest == "" || strings.ContainsAny(rest[:1], "=.([,)") {
		return false
	}
	return headerColon(text) > 0 && len(splitAssignment(text)) == 1
}

func isPyIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// headerColon finds the first colon outside brackets, strings and lambdas.
func headerColon(text string) int {
	pos := -1
	lambdas := 0
	scanTopLevel(text, func(i int) bool {
		if strings.HasPrefix(text[i:], "lambda") && (i == 0 || !isPyIdentByte(text[i-1])) &&
			(i+6 == len(text) || !isPyIdentByte(text[i+6])) {
			lambdas++
			return true
		}
		if text[i] != ':' || (i+1 < len(text) && text[i+1] == '=') {
			return true
		}
		if lambdas > 0 {
			lambdas--
			return true
		}
		pos = i
		return false
	})
	return pos
}

// splitAssignment splits on top-level "=" signs that are not part of a
// comparison or walrus operator.
func splitAssignment(text string) []string {
	var parts []string
	start := 0
	scanTopLevel(text, func(i int) bool {
		if text[i] != '=' {
			return true
		}
		if i+1 < len(text) && text[i+1] == '=' {
			return true
		}
		if i > 0 && strings.ContainsRune("=!<>:+-*/%&|^@", rune(text[i-1])) {
			return true
		}
		parts = append(parts, text[start:i])
		start = i + 1
		return true
	})
	return append(parts, text[start:])
}

// splitTopLevel splits s on sep outside brackets and strings.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	start := 0
	scanTopLevel(s, func(i int) bool {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		return true
	})
	return append(parts, s[start:])
}

// scanTopLevel calls fn for every byte index of s that is outside string
// literals and brackets. fn returns false to stop.
func scanTopLevel(s string, fn func(i int) bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(', '[', '{':
			depth++
			continue
		case ')', ']', '}':
			depth--
			continue
		}
		if depth == 0 && !fn(i) {
			return
		}
	}
}

// pyParams returns the parameter names of a def, without defaults,
// annotations or star markers.
func pyParams(list string) []string {
	var names []string
	for _, p := range splitTopLevel(list, ',') {
		p = strings.TrimSpace(p)
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		p = strings.TrimLeft(p, "*")
		if p == "" || p == "/" {
			continue
		}
		names = append(names, p)
	}
	return names
}

// pyLogicalLines joins physical lines into logical ones (bracket and
// backslash continuation), strips comments and measures indentation.
func pyLogicalLines(code string) ([]pyLine, error) {
	code = strings.ReplaceAll(code, "\r\n", "\n")

	var (
		lines     []pyLine
		buf       strings.Builder
		depth     int
		quote     byte
		triple    bool
		quoteLine int
		line      = 1
		startLine int
		indent    int
		atStart   = true
		opens     []byte
		openLines []int
	)

	emit := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			lines = append(lines, pyLine{indent: indent, line: startLine, text: text})
		}
		buf.Reset()
	}

	for i := 0; i < len(code); {
		c := code[i]

		if quote != 0 {
			buf.WriteByte(c)
			switch {
			case c == '\\' && i+1 < len(code):
				if code[i+1] == '\n' {
					line++
				}
				buf.WriteByte(code[i+1])
				i += 2
				continue
			case c == '\n':
				if !triple {
					return nil, &syntaxError{Line: quoteLine, Msg: "unterminated string literal"}
				}
				line++
			case triple && c == quote && strings.HasPrefix(code[i:], strings.Repeat(string(quote), 3)):
				buf.WriteString(strings.Repeat(string(quote), 2))
				quote = 0
				i += 3
				continue
			case !triple && c == quote:
				quote = 0
			}
			i++
			continue
		}

		if atStart {
			col, j := 0, i
			for j < len(code) && (code[j] == ' ' || code[j] == '\t' || code[j] == '\f') {
				if code[j] == '\t' {
					col = (col/8 + 1) * 8
				} else {
					col++
				}
				j++
			}
			if j >= len(code) {
				break
			}
			switch code[j] {
			case '\n':
				line++
				i = j + 1
				continue
			case '#':
				for j < len(code) && code[j] != '\n' {
					j++
				}
				i = j
				continue
			}
			indent = col
			startLine = line
			atStart = false
			i = j
			continue
		}

		switch c {
		case '#':
			for i < len(code) && code[i] != '\n' {
				i++
			}
			continue
		case '\'', '"':
			quote = c
			quoteLine = line
			triple = strings.HasPrefix(code[i:], strings.Repeat(string(c), 3))
			if triple {
				buf.WriteString(strings.Repeat(string(c), 3))
				i += 3
				continue
			}
		case '(', '[', '{':
			depth++
			opens = append(opens, c)
			openLines = append(openLines, line)
		case ')', ']', '}':
			if depth == 0 {
				return nil, &syntaxError{Line: line, Msg: fmt.Sprintf("unmatched '%c'", c)}
			}
			depth--
			opens = opens[:len(opens)-1]
			openLines = openLines[:len(openLines)-1]
		case '\\':
			if i+1 < len(code) && code[i+1] == '\n' {
				buf.WriteByte(' ')
				line++
				i += 2
				continue
			}
		case '\n':
			line++
			if depth > 0 {
				buf.WriteByte(' ')
			} else {
				emit()
				atStart = true
			}
			i++
			continue
		}

		buf.WriteByte(c)
		i++
	}

	if quote != 0 {
		msg := "unterminated string literal"
		if triple {
			msg = "unterminated triple-quoted string literal"
		}
		return nil, &syntaxError{Line: quoteLine, Msg: msg}
	}
	if depth > 0 {
		return nil, &syntaxError{Line: openLines[len(openLines)-1], Msg: fmt.Sprintf("'%c' was never closed", opens[len(opens)-1])}
	}
	emit()
	return lines, nil
}
