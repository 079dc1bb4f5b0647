package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dotcommander/codevisor/internal/domain"
)

var (
	pyNumberRe     = regexp.MustCompile(`^[-+]?(?:0[xXoObB][0-9a-fA-F_]+|(?:\d[\d_]*\.?[\d_]*|\.\d[\d_]*)(?:[eE][-+]?\d+)?j?)$`)
	pyRadixRe      = regexp.MustCompile(`^0[xob]`)
	pyStringRe     = regexp.MustCompile(`(?s)^[rRbBuUfF]{0,2}("""(.*)"""|'''(.*)'''|"(.*)"|'(.*)')$`)
	pyListCompRe   = regexp.MustCompile(`\[[^\[\]]*\bfor\b[^\[\]]*\bin\b[^\[\]]*\]`)
	pySliceCopyRe  = regexp.MustCompile(`^[A-Za-z_][\w.]*\[[^\[\]]*:[^\[\]]*\]$`)
	pyMembershipRe = regexp.MustCompile(`^[A-Za-z_]\w*\s+(?:not\s+)?in\s+\[.*\]$`)
	pyPrintRe      = regexp.MustCompile(`^print\s*\((.*)\)$`)
	pyCallRe       = regexp.MustCompile(`^[A-Za-z_][\w.]*\s*\(.*\)$`)
)

type pyProgram struct {
	code   string
	module []*pyStmt
}

func parsePythonProgram(code string) (program, error) {
	module, err := parsePython(code)
	if err != nil {
		return nil, err
	}
	return &pyProgram{code: code, module: module}, nil
}

// walk visits every statement depth-first in source order.
func (p *pyProgram) walk(fn func(s *pyStmt, loopDepth int)) {
	var visit func(stmts []*pyStmt, depth int)
	visit = func(stmts []*pyStmt, depth int) {
		for _, s := range stmts {
			fn(s, depth)
			inner := depth
			if s.kind == pyFor || s.kind == pyWhile {
				inner++
			}
			visit(s.body, inner)
			visit(s.orelse, depth)
			visit(s.handlers, depth)
		}
	}
	visit(p.module, 0)
}

func (p *pyProgram) flow() (*Graph, []domain.ExecutionStep) {
	f := newFlow()
	last := StartID
	for _, s := range p.module {
		last = p.visit(f, last, s)
	}
	return f.finish(last)
}

func (p *pyProgram) visitAll(f *flow, parent string, stmts []*pyStmt) string {
	for _, s := range stmts {
		parent = p.visit(f, parent, s)
	}
	return parent
}

func (p *pyProgram) visit(f *flow, parent string, s *pyStmt) string {
	switch s.kind {
	case pyDef:
		id := f.add(parent, Node{
			ID:    f.nextID("Func_" + s.name),
			Label: "Function: " + s.name,
			Shape: ShapeParallelogram,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{})
		return p.visitAll(f, id, s.body)

	case pyClass, pyBlock:
		return p.visitAll(f, parent, s.body)

	case pyTry:
		last := p.visitAll(f, parent, s.body)
		for _, h := range s.handlers {
			last = p.visitAll(f, last, h.body)
		}
		return p.visitAll(f, last, s.orelse)

	case pyAssign:
		names := pyTargetNames(s.targets)
		if len(names) == 0 {
			return parent
		}
		vars := make(map[string]any, len(names))
		for _, n := range names {
			vars[n] = s.value
		}
		return f.add(parent, Node{
			ID:    f.nextID("Assign"),
			Label: "Assign: " + strings.Join(names, ", "),
			Shape: ShapeRectangle,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{Variables: vars})

	case pyAugAssign:
		label := fmt.Sprintf("Update: %s %s= %s", s.targets[0], s.op, s.value)
		vars := map[string]any{}
		if pyIdentRe.MatchString(s.targets[0]) {
			vars[s.targets[0]] = fmt.Sprintf("%s %s %s", s.targets[0], s.op, s.value)
		}
		return f.add(parent, Node{
			ID:    f.nextID("Assign"),
			Label: label,
			Shape: ShapeRectangle,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{Variables: vars})

	case pyFor, pyWhile:
		prefix, label := "For", fmt.Sprintf("For: %s in %s", s.target, s.cond)
		if s.kind == pyWhile {
			prefix, label = "While", "While: "+s.cond
		}
		id := f.add(parent, Node{
			ID:    f.nextID(prefix),
			Label: label,
			Shape: ShapeDiamond,
			Fill:  "pink",
			Line:  s.line,
		}, domain.ExecutionStep{})
		if last := p.visitAll(f, id, s.body); last != id {
			f.graph.AddEdge(last, id)
		}
		return p.visitAll(f, id, s.orelse)

	case pyIf:
		id := f.add(parent, Node{
			ID:    f.nextID("If"),
			Label: "If: " + s.cond,
			Shape: ShapeDiamond,
			Fill:  "orange",
			Line:  s.line,
		}, domain.ExecutionStep{})
		last := p.visitAll(f, id, s.body)
		if len(s.orelse) > 0 {
			elseID := f.add(id, Node{
				ID:    f.nextID("Else"),
				Label: "Else",
				Shape: ShapeDiamond,
				Fill:  "orange",
				Line:  s.orelse[0].line,
			}, domain.ExecutionStep{})
			last = p.visitAll(f, elseID, s.orelse)
		}
		return last

	case pyReturn:
		label := "Return"
		if s.value != "" {
			label = "Return: " + s.value
		}
		return f.add(parent, Node{
			ID:    f.nextID("Return"),
			Label: label,
			Shape: ShapeParallelogram,
			Fill:  "yellow",
			Line:  s.line,
		}, domain.ExecutionStep{})

	case pyExpr:
		step := domain.ExecutionStep{}
		if m := pyPrintRe.FindStringSubmatch(s.head); m != nil {
			step.Output = strRef(strings.TrimSpace(m[1]))
		}
		return f.add(parent, Node{
			ID:    f.nextID("Expr"),
			Label: "Expression: " + s.head,
			Shape: ShapeRectangle,
			Fill:  "lightgray",
			Line:  s.line,
		}, step)
	}
	return parent
}

// pyTargetNames keeps the plain-name targets of an assignment, with any
// annotation removed.
func pyTargetNames(targets []string) []string {
	var names []string
	for _, t := range targets {
		if i := strings.IndexByte(t, ':'); i >= 0 {
			t = t[:i]
		}
		t = strings.TrimSpace(t)
		if pyIdentRe.MatchString(t) {
			names = append(names, t)
		}
	}
	return names
}

func (p *pyProgram) complexity() *domain.ComplexityInfo {
	loops, maxDepth := 0, 0
	statements := 0
	p.walk(func(s *pyStmt, depth int) {
		statements++
		if s.kind == pyFor || s.kind == pyWhile {
			loops++
			if depth > maxDepth {
				maxDepth = depth
			}
		}
	})
	recursive := p.hasRecursion()

	info := &domain.ComplexityInfo{Details: []string{}}
	switch {
	case recursive:
		info.TimeComplexity = "O(2^n)"
		info.Details = append(info.Details, "Detected recursive calls, leading to exponential time complexity.")
	case maxDepth > 0:
		info.TimeComplexity = fmt.Sprintf("O(n^%d)", maxDepth+1)
		info.Details = append(info.Details, fmt.Sprintf("Detected %d nested loops, leading to polynomial time complexity.", maxDepth+1))
	case loops == 1:
		info.TimeComplexity = "O(n)"
		info.Details = append(info.Details, "Detected a single loop, leading to linear time complexity.")
	case loops > 1:
		info.TimeComplexity = "O(n)"
		info.Details = append(info.Details, fmt.Sprintf("Detected %d sequential loops, leading to linear time complexity.", loops))
	default:
		info.TimeComplexity = "O(1)"
		info.Details = append(info.Details, "No loops or recursion detected, constant time complexity.")
	}

	switch {
	case recursive:
		info.SpaceComplexity = "O(n)"
		info.Details = append(info.Details, "Recursive calls detected, leading to linear space complexity due to call stack.")
	case statements > 0:
		info.SpaceComplexity = "O(1)"
		info.Details = append(info.Details, "Only a constant number of variables detected.")
	default:
		info.SpaceComplexity = "O(1)"
		info.Details = append(info.Details, "Minimal space usage detected.")
	}
	return info
}

// hasRecursion reports whether any function calls itself from its own body.
func (p *pyProgram) hasRecursion() bool {
	found := false
	p.walk(func(s *pyStmt, _ int) {
		if found || s.kind != pyDef {
			return
		}
		call := regexp.MustCompile(`\b` + regexp.QuoteMeta(s.name) + `\s*\(`)
		var scan func(stmts []*pyStmt)
		scan = func(stmts []*pyStmt) {
			for _, c := range stmts {
				if found {
					return
				}
				if c.kind == pyDef && c.name == s.name {
					continue
				}
				if call.MatchString(c.head) {
					found = true
					return
				}
				scan(c.body)
				scan(c.orelse)
				scan(c.handlers)
			}
		}
		scan(s.body)
	})
	return found
}

func (p *pyProgram) optimization() *domain.OptimizationInfo {
	info := &domain.OptimizationInfo{Suggestions: []string{}, OptimizedCode: p.code}
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			info.Suggestions = append(info.Suggestions, s)
		}
	}

	p.walk(func(s *pyStmt, _ int) {
		if s.kind == pyFor {
			for _, c := range s.body {
				if c.kind == pyFor {
					add("Consider replacing nested loops with a list comprehension for better performance.")
					break
				}
			}
		}
		if s.kind == pyIf && pyMembershipRe.MatchString(s.cond) {
			add("Consider using a set instead of a list for membership testing to reduce time complexity from O(n) to O(1).")
		}
	})
	return info
}

func (p *pyProgram) memory() *domain.MemoryInfo {
	m := newMemoryReport()

	p.walk(func(s *pyStmt, _ int) {
		for range pyListCompRe.FindAllStringIndex(s.head, -1) {
			const size = 64 + 8*1000
			m.allocate("list comprehension", "ListComp", fmt.Sprintf("%d bytes (assumed 1000 elements)", size), size, s.line)
			m.flag(s.line, "List comprehension creates a large list in memory",
				"Consider using a generator expression to save memory")
		}

		switch s.kind {
		case pyAssign:
			for _, name := range pyTargetNames(s.targets) {
				size, kind := m.pyValueSize(s.value, s.line)
				m.allocate(name, kind, fmt.Sprintf("%d bytes", size), size, s.line)
				if pySliceCopyRe.MatchString(s.value) {
					m.flag(s.line, "Unnecessary list copy using slicing",
						"Use a reference instead of copying (e.g., y = x instead of y = x[:])")
				}
			}
		case pyAugAssign:
			if s.op != "+" || !pyIdentRe.MatchString(s.targets[0]) {
				return
			}
			if lit, ok := pyStringLiteral(s.value); ok {
				size := 49 + utf8.RuneCountInString(lit)
				m.allocate(s.targets[0], "string (concatenation)", fmt.Sprintf("%d bytes", size), size, s.line)
				m.flag(s.line, "String concatenation in a loop creates multiple temporary objects",
					"Use a list to collect strings and join them at the end (e.g., ''.join(list))")
			}
		case pyFor:
			if pyIdentRe.MatchString(s.target) {
				m.allocate(s.target, "int (loop variable)", "24 bytes", 24, s.line)
			}
		case pyDef:
			for _, param := range s.params {
				m.allocate(fmt.Sprintf("%s (param in %s)", param, s.name), "int (assumed)", "24 bytes", 24, s.line)
			}
		}
	})
	return m.info()
}

// pyValueSize estimates the size of a literal expression in bytes.
func (m *memoryReport) pyValueSize(expr string, line int) (int, string) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return 0, "expression"
	case pyNumberRe.MatchString(expr):
		digits := strings.ToLower(strings.TrimLeft(expr, "-+"))
		if !pyRadixRe.MatchString(digits) && strings.ContainsAny(digits, ".ej") {
			return 24, "float"
		}
		return 24, "int"
	}
	if lit, ok := pyStringLiteral(expr); ok {
		return 49 + utf8.RuneCountInString(lit), "str"
	}

	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") && !pyListCompRe.MatchString(expr) {
		elems := nonEmpty(splitTopLevel(expr[1:len(expr)-1], ','))
		size := 64 + 8*len(elems)
		for _, e := range elems {
			n, _ := m.pyValueSize(e, line)
			size += n
		}
		if len(elems) > 1000 {
			m.flag(line, fmt.Sprintf("Large list with %d elements", len(elems)),
				"Consider using a generator or numpy array for large datasets to save memory")
		}
		return size, "list"
	}

	if strings.HasPrefix(expr, "{") && strings.HasSuffix(expr, "}") {
		elems := nonEmpty(splitTopLevel(expr[1:len(expr)-1], ','))
		if len(elems) == 0 {
			return 240, "dict"
		}
		size := 240 + 36*len(elems)
		for _, e := range elems {
			kv := splitTopLevel(e, ':')
			if len(kv) != 2 {
				if strings.HasPrefix(strings.TrimSpace(e), "**") {
					continue
				}
				return 0, "set"
			}
			k, _ := m.pyValueSize(kv[0], line)
			v, _ := m.pyValueSize(kv[1], line)
			size += k + v
		}
		return size, "dict"
	}

	switch {
	case pyIdentRe.MatchString(expr):
		return 0, "name"
	case pyCallRe.MatchString(expr):
		return 0, "call"
	}
	return 0, "expression"
}

// pyStringLiteral returns the contents of a single string literal.
func pyStringLiteral(expr string) (string, bool) {
	m := pyStringRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", false
	}
	switch {
	case m[2] != "":
		return m[2], true
	case m[3] != "":
		return m[3], true
	case m[4] != "":
		// "a" "b" is two literals
		return m[4], !containsUnescaped(m[4], '"')
	case m[5] != "":
		return m[5], !containsUnescaped(m[5], '\'')
	}
	return "", true
}

func containsUnescaped(s string, quote byte) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return true
		}
	}
	return false
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseSteps is the flat breadth-first statement listing served by the
// parse-python endpoint.
func (p *pyProgram) parseSteps() []domain.ExecutionStep {
	steps := []domain.ExecutionStep{}
	queue := append([]*pyStmt(nil), p.module...)
	n := 0

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		queue = append(queue, s.body...)
		queue = append(queue, s.orelse...)
		queue = append(queue, s.handlers...)

		var desc string
		vars := map[string]any{}
		switch s.kind {
		case pyDef:
			desc = "Function: " + s.name
		case pyIf:
			desc = "If Statement: " + s.cond
		case pyFor:
			desc = "For Loop: iterating over " + s.cond
		case pyWhile:
			desc = "While Loop: " + s.cond
		case pyAssign:
			desc = fmt.Sprintf("Assignment: %s = %s", strings.Join(s.targets, " = "), s.value)
			for _, t := range s.targets {
				vars[t] = s.value
			}
		case pyExpr:
			desc = "Expression: " + s.head
		default:
			continue
		}

		n++
		steps = append(steps, domain.ExecutionStep{
			NodeID:      fmt.Sprintf("node_%d", n),
			Description: desc,
			Variables:   vars,
			Line:        lineRef(s.line),
		})
	}
	return steps
}
