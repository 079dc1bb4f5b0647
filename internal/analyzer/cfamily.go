package analyzer

import (
	"fmt"
	"strings"
)

// syntaxError is a source problem that stops a front-end, with the 1-based
// line it was found on.
type syntaxError struct {
	Line int
	Msg  string
}

func (e *syntaxError) Error() string {
	if e.Line <= 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s (line %d)", e.Msg, e.Line)
}

// skipLiteral returns the index of the quote closing the string or char
// literal opening at i, or -1 when it is not closed. Plain literals may not
// span lines; """ text blocks may.
func skipLiteral(code string, i int) int {
	q := code[i]
	if q == '"' && strings.HasPrefix(code[i:], `"""`) {
		end := strings.Index(code[i+3:], `"""`)
		if end < 0 {
			return -1
		}
		return i + 3 + end + 2
	}
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case '\n':
			return -1
		case q:
			return j
		}
	}
	return -1
}

// blankComments replaces // and /* */ comments with spaces, keeping newlines
// and every other byte offset intact. String and char literals are left alone.
func blankComments(code string) (string, error) {
	out := []byte(code)
	for i := 0; i < len(out); i++ {
		switch c := out[i]; {
		case c == '"' || c == '\'':
			end := skipLiteral(code, i)
			if end < 0 {
				return "", &syntaxError{Line: lineAt(code, i), Msg: "unterminated string literal"}
			}
			i = end
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
			i--
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(code[i+2:], "*/")
			if end < 0 {
				return "", &syntaxError{Line: lineAt(code, i), Msg: "unterminated comment"}
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
			i--
		}
	}
	return string(out), nil
}

// checkBraces reports the first unbalanced brace, bracket or parenthesis in
// comment-free source.
func checkBraces(code string) error {
	type open struct {
		ch  byte
		off int
	}
	closer := map[byte]byte{')': '(', ']': '[', '}': '{'}
	var stack []open
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"', '\'':
			if end := skipLiteral(code, i); end > 0 {
				i = end
			}
		case '(', '[', '{':
			stack = append(stack, open{c, i})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != closer[c] {
				return &syntaxError{Line: lineAt(code, i), Msg: fmt.Sprintf("unexpected '%c'", c)}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return &syntaxError{Line: lineAt(code, top.off), Msg: fmt.Sprintf("'%c' was never closed", top.ch)}
	}
	return nil
}

// matchClose returns the index of the bracket closing the one at open, or -1.
func matchClose(code string, open int) int {
	if open < 0 || open >= len(code) {
		return -1
	}
	depth := 0
	for i := open; i < len(code); i++ {
		switch c := code[i]; c {
		case '"', '\'':
			if end := skipLiteral(code, i); end > 0 {
				i = end
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parenText is the collapsed text between the parenthesis at open and its
// partner.
func parenText(code string, open int) string {
	close := matchClose(code, open)
	if close < 0 {
		return ""
	}
	return collapse(code[open+1 : close])
}

// lineAt is the 1-based line holding byte offset off.
func lineAt(code string, off int) int {
	if off > len(code) {
		off = len(code)
	}
	return strings.Count(code[:off], "\n") + 1
}

// collapse joins s onto one line with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// primitiveSize is the size of a fixed-width scalar type shared by C++ and
// Java, or 0 when the type is not one.
func primitiveSize(typ string) int {
	switch typ {
	case "int", "float":
		return 4
	case "double":
		return 8
	}
	return 0
}
