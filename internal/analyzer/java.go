package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dotcommander/codevisor/internal/domain"
)

type javaProgram struct {
	code   string
	source string
	unit   []*jStmt
}

func parseJavaProgram(source string) (program, error) {
	code, err := blankComments(source)
	if err != nil {
		return nil, err
	}
	if err := checkBraces(code); err != nil {
		return nil, err
	}
	unit, err := parseJava(code)
	if err != nil {
		return nil, err
	}
	return &javaProgram{code: code, source: source, unit: unit}, nil
}

// walk visits every statement depth-first in source order.
func (p *javaProgram) walk(fn func(s *jStmt)) {
	var visit func(stmts []*jStmt)
	visit = func(stmts []*jStmt) {
		for _, s := range stmts {
			fn(s)
			visit(s.body)
			visit(s.handlers)
			visit(s.orelse)
		}
	}
	visit(p.unit)
}

func (p *javaProgram) flow() (*Graph, []domain.ExecutionStep) {
	f := newFlow()
	last := p.visitAll(f, StartID, p.unit)
	return f.finish(last)
}

func (p *javaProgram) visitAll(f *flow, parent string, stmts []*jStmt) string {
	for _, s := range stmts {
		parent = p.visit(f, parent, s)
	}
	return parent
}

func (p *javaProgram) visit(f *flow, parent string, s *jStmt) string {
	switch s.kind {
	case jClass, jBlock:
		return p.visitAll(f, parent, s.body)

	case jMethod:
		id := f.add(parent, Node{
			ID:    f.nextID("Method_" + s.name),
			Label: "Method: " + s.name,
			Shape: ShapeParallelogram,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{})
		return p.visitAll(f, id, s.body)

	case jLocal:
		for _, v := range s.vars {
			label, desc, value := "Declare: "+v.name, "Declare: "+v.name, any("N/A")
			if v.init != "" {
				label = v.name + " = " + v.init
				desc = "Assignment: " + label
				value = v.init
			}
			parent = f.add(parent, Node{
				ID:    f.nextID("Var_" + v.name),
				Label: label,
				Shape: ShapeRectangle,
				Fill:  "lightblue",
				Line:  s.line,
			}, domain.ExecutionStep{Description: desc, Variables: map[string]any{v.name: value}})
		}
		return parent

	case jPrint:
		return f.add(parent, Node{
			ID:    f.nextID("Print"),
			Label: "Print: " + s.text,
			Shape: ShapeParallelogram,
			Fill:  "lightgray",
			Line:  s.line,
		}, domain.ExecutionStep{Output: strRef(s.text)})

	case jAssign:
		vars := map[string]any{}
		if isJavaName(s.target) {
			vars[s.target] = s.value
		}
		return f.add(parent, Node{
			ID:    f.nextID("Assign"),
			Label: fmt.Sprintf("Assign: %s %s %s", s.target, s.op, s.value),
			Shape: ShapeRectangle,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{Variables: vars})

	case jExpr:
		return f.add(parent, Node{
			ID:    f.nextID("Expr"),
			Label: "Expression: " + s.text,
			Shape: ShapeRectangle,
			Fill:  "lightgray",
			Line:  s.line,
		}, domain.ExecutionStep{})

	case jIf:
		id := f.add(parent, Node{
			ID:    f.nextID("If"),
			Label: "If: " + s.text,
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

	case jFor, jForEach, jWhile, jDo:
		prefix, label := "For", "For Loop: "+s.text
		switch s.kind {
		case jWhile:
			prefix, label = "While", "While Loop: "+s.text
		case jDo:
			prefix, label = "While", "Do-While Loop: "+s.text
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
		return id

	case jTry:
		tryID := f.add(parent, Node{
			ID:    f.nextID("Try"),
			Label: "Try Block",
			Shape: ShapeRectangle,
			Fill:  "yellow",
			Line:  s.line,
		}, domain.ExecutionStep{})
		last := p.visitAll(f, tryID, s.body)
		for _, c := range s.handlers {
			label := "Catch"
			if len(c.vars) > 0 {
				label = fmt.Sprintf("Catch: %s %s", c.vars[0].typ, c.vars[0].name)
			}
			catchID := f.add(tryID, Node{
				ID:    f.nextID("Catch"),
				Label: label,
				Shape: ShapeParallelogram,
				Fill:  "red",
				Line:  c.line,
			}, domain.ExecutionStep{})
			if len(c.body) > 0 {
				last = p.visitAll(f, catchID, c.body)
			}
		}
		return p.visitAll(f, last, s.orelse)

	case jSwitch:
		id := f.add(parent, Node{
			ID:    f.nextID("Switch"),
			Label: "Switch: " + s.text,
			Shape: ShapeDiamond,
			Fill:  "orange",
			Line:  s.line,
		}, domain.ExecutionStep{})
		return p.visitAll(f, id, s.body)

	case jReturn:
		label := "Return"
		if s.text != "" {
			label = "Return: " + s.text
		}
		return f.add(parent, Node{
			ID:    f.nextID("Return"),
			Label: label,
			Shape: ShapeRectangle,
			Fill:  "lightblue",
			Line:  s.line,
		}, domain.ExecutionStep{})
	}
	return parent
}

var javaNameRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

func isJavaName(s string) bool {
	return javaNameRe.MatchString(s)
}

func (p *javaProgram) complexity() *domain.ComplexityInfo {
	loops := 0
	p.walk(func(s *jStmt) {
		switch s.kind {
		case jFor, jForEach, jWhile, jDo:
			loops++
		}
	})
	info := &domain.ComplexityInfo{TimeComplexity: "O(1)", SpaceComplexity: "O(1)"}
	kind := "constant"
	if loops > 0 {
		info.TimeComplexity = "O(n)"
		kind = "linear"
	}
	info.Details = []string{fmt.Sprintf("Detected %d loops, leading to %s time complexity.", loops, kind)}
	return info
}

func (p *javaProgram) optimization() *domain.OptimizationInfo {
	info := &domain.OptimizationInfo{Suggestions: []string{}, OptimizedCode: p.source}
	if strings.Contains(p.source, "String") {
		info.Suggestions = append(info.Suggestions, "Consider using StringBuilder for string concatenation in loops.")
	}
	return info
}

func (p *javaProgram) memory() *domain.MemoryInfo {
	m := newMemoryReport()

	locals := map[string]jVar{}
	p.walk(func(s *jStmt) {
		if s.kind != jLocal {
			return
		}
		for _, v := range s.vars {
			if _, seen := locals[v.name]; !seen {
				locals[v.name] = v
			}
			p.localMemory(m, v, s.line)
		}
	})

	p.walk(func(s *jStmt) {
		if s.kind != jFor {
			return
		}
		for _, v := range s.vars {
			if size := primitiveSize(v.base); size > 0 && !v.dims {
				m.allocate(v.name, v.base+" (loop variable)", fmt.Sprintf("%d bytes", size), size, s.line)
			}
		}
	})

	p.walk(func(s *jStmt) {
		if s.kind == jMethod {
			p.paramMemory(m, s, locals)
		}
	})

	p.walk(func(s *jStmt) {
		if s.kind != jFor && s.kind != jForEach {
			return
		}
		if p.concatenatesString(s.body, locals) {
			const size = 40 * 100
			m.allocate("temporary strings", "String (concatenation in loop)",
				fmt.Sprintf("%d bytes (assumed 100 concatenations)", size), size, s.line)
			m.flag(s.line, "String concatenation in a loop creates multiple temporary objects",
				"Use StringBuilder for string concatenation in loops")
		}
	})
	return m.info()
}

func (p *javaProgram) localMemory(m *memoryReport, v jVar, line int) {
	if v.dims {
		elem := 0
		switch v.base {
		case "int", "float":
			elem = 4
		case "double":
			elem = 8
		}
		if elem == 0 || v.arraySize == 0 {
			return
		}
		size := v.arraySize * elem
		m.allocate(v.name, fmt.Sprintf("%s array[%d]", v.base, v.arraySize), fmt.Sprintf("%d bytes", size), size, line)
		if v.arraySize > 1000 {
			m.flag(line, fmt.Sprintf("Large array declaration (%d elements)", v.arraySize),
				"Consider using a smaller array or an ArrayList with pre-allocated capacity")
		}
		return
	}

	switch {
	case primitiveSize(v.base) > 0:
		size := primitiveSize(v.base)
		m.allocate(v.name, v.base, fmt.Sprintf("%d bytes", size), size, line)
	case v.base == "String":
		size := 40
		if lit, ok := cLiteral(v.init); ok {
			size += utf8.RuneCountInString(lit)
		}
		m.allocate(v.name, "String", fmt.Sprintf("%d bytes", size), size, line)
	case v.base == "ArrayList" || strings.HasPrefix(v.init, "new ArrayList"):
		const size = 40 + 8*1000
		m.allocate(v.name, "ArrayList", fmt.Sprintf("%d bytes (assumed 1000 elements)", size), size, line)
		m.flag(line, "Large ArrayList allocation",
			"Consider pre-allocating capacity (e.g., new ArrayList<>(capacity)) to avoid resizing")
	}
}

// paramMemory sizes the parameters of method. An int or float array
// parameter takes its length from an array local passed at a call site,
// defaulting to 100 elements.
func (p *javaProgram) paramMemory(m *memoryReport, method *jStmt, locals map[string]jVar) {
	for _, v := range method.vars {
		variable := fmt.Sprintf("%s (param in %s)", v.name, method.name)
		if !v.dims {
			switch {
			case primitiveSize(v.base) > 0:
				size := primitiveSize(v.base)
				m.allocate(variable, v.base, fmt.Sprintf("%d bytes", size), size, method.line)
			case v.base == "String":
				m.allocate(variable, "String", "40 bytes (base size)", 40, method.line)
			}
			continue
		}
		if v.base != "int" && v.base != "float" {
			continue
		}

		elems := p.callArraySize(method.name, locals)
		if elems == 0 {
			elems = 100
		}
		arrayVar := fmt.Sprintf("%s (array param in %s)", v.name, method.name)
		if !m.has(arrayVar) {
			size := elems * 4
			m.allocate(arrayVar, v.base+" array", fmt.Sprintf("%d bytes (assumed %d elements)", size, elems), size, method.line)
		}
		if elems > 1000 {
			m.flag(method.line, fmt.Sprintf("Large array parameter (%d elements) passed to method", elems),
				"Consider passing a smaller array or using a List with pre-allocated capacity")
		}
	}
}

// callArraySize finds an array local with a known length passed to a call
// of name.
func (p *javaProgram) callArraySize(name string, locals map[string]jVar) int {
	call := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(([^;{}]*)\)`)
	for _, m := range call.FindAllStringSubmatch(p.code, -1) {
		for _, arg := range strings.Split(m[1], ",") {
			if v, ok := locals[strings.TrimSpace(arg)]; ok && v.dims && v.arraySize > 0 {
				return v.arraySize
			}
		}
	}
	return 0
}

// concatenatesString reports whether stmts, or any statement nested in them,
// appends to a String local with +=.
func (p *javaProgram) concatenatesString(stmts []*jStmt, locals map[string]jVar) bool {
	for _, s := range stmts {
		if s.kind == jAssign && s.op == "+=" {
			if v, ok := locals[s.target]; ok && v.base == "String" && !v.dims {
				return true
			}
		}
		if p.concatenatesString(s.body, locals) || p.concatenatesString(s.handlers, locals) ||
			p.concatenatesString(s.orelse, locals) {
			return true
		}
	}
	return false
}
