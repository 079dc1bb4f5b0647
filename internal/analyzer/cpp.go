package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dotcommander/codevisor/internal/domain"
)

var (
	cppFuncRe     = regexp.MustCompile(`\b(\w+)[\s*&]+(\w+)\s*\(([^(){};]*)\)\s*(?:const\s*)?\{`)
	cppDeclRe     = regexp.MustCompile(`\b((?:\w+::)*\w+(?:\s*<[^;{}()]*>)?)[\s*&]+(\w+)\s*(?:=\s*([^;{}]+))?;`)
	cppArrayRe    = regexp.MustCompile(`\b(\w+)\s+(\w+)\s*\[(\d+)\]\s*(?:=\s*\{[^;]*\})?\s*;`)
	cppCondRe     = regexp.MustCompile(`\b(else\s+if|if)\s*\(`)
	cppElseRe     = regexp.MustCompile(`\belse\b`)
	cppLoopRe     = regexp.MustCompile(`\b(for|while)\s*\(`)
	cppLoopVarRe  = regexp.MustCompile(`\bfor\s*\(\s*((?:\w+::)*\w+)\s+(\w+)\s*=`)
	cppCallRe     = regexp.MustCompile(`\b(\w+)\s*\(([^;{}]*)\)\s*;`)
	cppReturnRe   = regexp.MustCompile(`\breturn\b\s*([^;]*);`)
	cppPrintRe    = regexp.MustCompile(`\bcout\s*<<\s*([^;]*);`)
	cppAssignRe   = regexp.MustCompile(`\b(\w+)\s*=\s*(\d+)\s*;`)
	cppConcatRe   = regexp.MustCompile(`\b(\w+)\s*\+=`)
	cppIfPrefixRe = regexp.MustCompile(`^\s+if\b`)
)

var cppNotTypes = map[string]bool{
	"return": true, "else": true, "namespace": true, "using": true, "delete": true,
	"new": true, "goto": true, "case": true, "throw": true, "class": true,
	"struct": true, "enum": true, "union": true, "do": true, "typedef": true,
}

var cppNotCalls = map[string]bool{
	"if": true, "while": true, "for": true, "switch": true, "return": true,
	"sizeof": true, "catch": true, "alignof": true, "decltype": true,
}

type cppFunc struct {
	ret, name, params string
	off, line         int
}

type cppDecl struct {
	typ, name, value string
	off, line        int
}

type cppArray struct {
	typ, name string
	size      int
	off, line int
}

type cppCond struct {
	kind, cond string
	off, line  int
}

type cppLoop struct {
	kind, cond string
	off, line  int
	bodyStart  int
	bodyEnd    int
}

type cppText struct {
	name, text string
	off, line  int
}

// cppProgram holds what the pattern scan pulled out of a C++ file.
type cppProgram struct {
	code      string
	source    string
	functions []cppFunc
	decls     []cppDecl
	arrays    []cppArray
	conds     []cppCond
	loops     []cppLoop
	loopVars  []cppDecl
	calls     []cppText
	returns   []cppText
	prints    []cppText
	assigns   map[string]int
}

func parseCPPProgram(source string) (program, error) {
	code, err := blankComments(source)
	if err != nil {
		return nil, err
	}
	if err := checkBraces(code); err != nil {
		return nil, err
	}

	p := &cppProgram{code: code, source: source, assigns: map[string]int{}}

	for _, m := range cppFuncRe.FindAllStringSubmatchIndex(code, -1) {
		ret, name := code[m[2]:m[3]], code[m[4]:m[5]]
		if cppNotCalls[name] || cppNotTypes[ret] {
			continue
		}
		p.functions = append(p.functions, cppFunc{
			ret:    ret,
			name:   name,
			params: collapse(code[m[6]:m[7]]),
			off:    m[4],
			line:   lineAt(code, m[4]),
		})
	}

	for _, m := range cppDeclRe.FindAllStringSubmatchIndex(code, -1) {
		typ := collapse(code[m[2]:m[3]])
		if cppNotTypes[typ] {
			continue
		}
		d := cppDecl{typ: typ, name: code[m[4]:m[5]], off: m[0], line: lineAt(code, m[4])}
		if m[6] >= 0 {
			d.value = collapse(code[m[6]:m[7]])
		}
		p.decls = append(p.decls, d)
	}

	for _, m := range cppArrayRe.FindAllStringSubmatchIndex(code, -1) {
		size, err := strconv.Atoi(code[m[6]:m[7]])
		if err != nil {
			continue
		}
		p.arrays = append(p.arrays, cppArray{
			typ:  code[m[2]:m[3]],
			name: code[m[4]:m[5]],
			size: size,
			off:  m[0],
			line: lineAt(code, m[0]),
		})
	}

	for _, m := range cppCondRe.FindAllStringSubmatchIndex(code, -1) {
		kind := "if"
		if strings.HasPrefix(code[m[2]:m[3]], "else") {
			kind = "else if"
		}
		p.conds = append(p.conds, cppCond{
			kind: kind,
			cond: parenText(code, m[1]-1),
			off:  m[0],
			line: lineAt(code, m[0]),
		})
	}
	for _, m := range cppElseRe.FindAllStringIndex(code, -1) {
		if cppIfPrefixRe.MatchString(code[m[1]:]) {
			continue
		}
		p.conds = append(p.conds, cppCond{kind: "else", off: m[0], line: lineAt(code, m[0])})
	}
	sort.Slice(p.conds, func(i, j int) bool { return p.conds[i].off < p.conds[j].off })

	for _, m := range cppLoopRe.FindAllStringSubmatchIndex(code, -1) {
		open := m[1] - 1
		l := cppLoop{
			kind:      code[m[2]:m[3]],
			cond:      parenText(code, open),
			off:       m[0],
			line:      lineAt(code, m[0]),
			bodyStart: -1,
			bodyEnd:   -1,
		}
		if close := matchClose(code, open); close > 0 {
			rest := strings.TrimLeft(code[close+1:], " \t\r\n")
			if strings.HasPrefix(rest, "{") {
				l.bodyStart = len(code) - len(rest)
				l.bodyEnd = matchClose(code, l.bodyStart)
			}
		}
		p.loops = append(p.loops, l)
	}

	for _, m := range cppLoopVarRe.FindAllStringSubmatchIndex(code, -1) {
		p.loopVars = append(p.loopVars, cppDecl{
			typ:  code[m[2]:m[3]],
			name: code[m[4]:m[5]],
			off:  m[0],
			line: lineAt(code, m[0]),
		})
	}

	for _, m := range cppCallRe.FindAllStringSubmatchIndex(code, -1) {
		name := code[m[2]:m[3]]
		if cppNotCalls[name] || p.isPrototype(m[2]) {
			continue
		}
		p.calls = append(p.calls, cppText{name: name, text: collapse(code[m[4]:m[5]]), off: m[0], line: lineAt(code, m[0])})
	}

	for _, m := range cppReturnRe.FindAllStringSubmatchIndex(code, -1) {
		p.returns = append(p.returns, cppText{text: collapse(code[m[2]:m[3]]), off: m[0], line: lineAt(code, m[0])})
	}
	for _, m := range cppPrintRe.FindAllStringSubmatchIndex(code, -1) {
		p.prints = append(p.prints, cppText{text: collapse(code[m[2]:m[3]]), off: m[0], line: lineAt(code, m[0])})
	}
	for _, m := range cppAssignRe.FindAllStringSubmatch(code, -1) {
		if _, seen := p.assigns[m[1]]; seen {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			p.assigns[m[1]] = n
		}
	}
	return p, nil
}

// isPrototype reports whether the call-shaped text at off is really a
// declaration such as `int add(int a, int b);`.
func (p *cppProgram) isPrototype(off int) bool {
	before := strings.TrimRight(p.code[:off], " \t\r\n*&")
	if before == "" {
		return false
	}
	end := len(before)
	start := end
	for start > 0 && isPyIdentByte(before[start-1]) {
		start--
	}
	if start == end {
		return false
	}
	word := before[start:end]
	return !cppNotTypes[word] && word != "return"
}

type cppNode struct {
	off  int
	node Node
	step domain.ExecutionStep
	loop *cppLoop
}

func (p *cppProgram) nodes() []cppNode {
	var out []cppNode
	for i, fn := range p.functions {
		out = append(out, cppNode{off: fn.off, node: Node{
			ID: fmt.Sprintf("Func_%s_%d", fn.name, i), Label: "Function: " + fn.name,
			Shape: ShapeParallelogram, Fill: "lightblue", Line: fn.line,
		}})
	}
	for i, d := range p.decls {
		label, desc, value := "Declare: "+d.name, "Declare: "+d.name, any("N/A")
		if d.value != "" {
			label = d.name + " = " + d.value
			desc = "Assignment: " + label
			value = d.value
		}
		out = append(out, cppNode{off: d.off, node: Node{
			ID: fmt.Sprintf("Var_%s_%d", d.name, i), Label: label,
			Shape: ShapeRectangle, Fill: "lightyellow", Line: d.line,
		}, step: domain.ExecutionStep{Description: desc, Variables: map[string]any{d.name: value}}})
	}
	for i, a := range p.arrays {
		label := fmt.Sprintf("Declare: %s[%d]", a.name, a.size)
		out = append(out, cppNode{off: a.off, node: Node{
			ID: fmt.Sprintf("Array_%s_%d", a.name, i), Label: label,
			Shape: ShapeRectangle, Fill: "lightyellow", Line: a.line,
		}, step: domain.ExecutionStep{Variables: map[string]any{a.name: fmt.Sprintf("%s[%d]", a.typ, a.size)}}})
	}
	for i, c := range p.conds {
		label, fill := "Else", "red"
		switch c.kind {
		case "if":
			label, fill = "If: "+c.cond, "orange"
		case "else if":
			label, fill = "Else if: "+c.cond, "orange"
		}
		out = append(out, cppNode{off: c.off, node: Node{
			ID: fmt.Sprintf("%s_%d", strings.ReplaceAll(c.kind, " ", "_"), i), Label: label,
			Shape: ShapeDiamond, Fill: fill, Line: c.line,
		}})
	}
	for i := range p.loops {
		l := &p.loops[i]
		kind := strings.ToUpper(l.kind[:1]) + l.kind[1:]
		out = append(out, cppNode{off: l.off, loop: l, node: Node{
			ID: fmt.Sprintf("Loop_%d", i), Label: fmt.Sprintf("%s Loop: %s", kind, l.cond),
			Shape: ShapeDiamond, Fill: "pink", Line: l.line,
		}})
	}
	for i, c := range p.calls {
		out = append(out, cppNode{off: c.off, node: Node{
			ID: fmt.Sprintf("Call_%s_%d", c.name, i), Label: fmt.Sprintf("Call: %s()", c.name),
			Shape: ShapeParallelogram, Fill: "yellow", Line: c.line,
		}})
	}
	for i, r := range p.returns {
		label := "Return"
		if r.text != "" {
			label = "Return: " + r.text
		}
		out = append(out, cppNode{off: r.off, node: Node{
			ID: fmt.Sprintf("Return_%d", i), Label: label,
			Shape: ShapeRectangle, Fill: "lightblue", Line: r.line,
		}})
	}
	for i, pr := range p.prints {
		out = append(out, cppNode{off: pr.off, node: Node{
			ID: fmt.Sprintf("Print_%d", i), Label: "Print: " + pr.text,
			Shape: ShapeParallelogram, Fill: "lightgray", Line: pr.line,
		}, step: domain.ExecutionStep{Output: strRef(pr.text)}})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].off < out[j].off })
	return out
}

// flow chains the extracted statements in source order. A braced loop body
// gets a back edge to its loop node, and the code after it continues from
// the loop node.
func (p *cppProgram) flow() (*Graph, []domain.ExecutionStep) {
	f := newFlow()
	last := StartID
	var open []*cppLoop
	ids := map[*cppLoop]string{}

	closeLoops := func(off int) {
		for len(open) > 0 && open[len(open)-1].bodyEnd < off {
			l := open[len(open)-1]
			open = open[:len(open)-1]
			if last != ids[l] {
				f.graph.AddEdge(last, ids[l])
			}
			last = ids[l]
		}
	}

	for _, n := range p.nodes() {
		closeLoops(n.off)
		last = f.add(last, n.node, n.step)
		if n.loop != nil && n.loop.bodyEnd > 0 {
			ids[n.loop] = n.node.ID
			open = append(open, n.loop)
		}
	}
	closeLoops(len(p.code) + 1)
	return f.finish(last)
}

func (p *cppProgram) complexity() *domain.ComplexityInfo {
	n := len(p.loops)
	info := &domain.ComplexityInfo{TimeComplexity: "O(1)", SpaceComplexity: "O(1)"}
	kind := "constant"
	if n > 0 {
		info.TimeComplexity = "O(n)"
		kind = "linear"
	}
	info.Details = []string{fmt.Sprintf("Detected %d loops, leading to %s time complexity.", n, kind)}
	return info
}

func (p *cppProgram) optimization() *domain.OptimizationInfo {
	return &domain.OptimizationInfo{Suggestions: []string{}, OptimizedCode: p.source}
}

func (p *cppProgram) memory() *domain.MemoryInfo {
	m := newMemoryReport()
	strVars := map[string]bool{}

	for _, d := range p.decls {
		base := cppBaseType(d.typ)
		switch {
		case primitiveSize(base) > 0:
			size := primitiveSize(base)
			m.allocate(d.name, base, fmt.Sprintf("%d bytes", size), size, d.line)
		case base == "string":
			strVars[d.name] = true
			size := 32
			if lit, ok := cLiteral(d.value); ok {
				size += utf8.RuneCountInString(lit)
			}
			m.allocate(d.name, base, fmt.Sprintf("%d bytes", size), size, d.line)
		case strings.Contains(d.typ, "vector"):
			const size = 24 + 8*1000
			m.allocate(d.name, "vector", fmt.Sprintf("%d bytes (assumed 1000 elements)", size), size, d.line)
			m.flag(d.line, "Large vector allocation on stack",
				"Consider using dynamic allocation (e.g., std::vector on heap) or reserve memory in advance")
		}
	}

	for _, a := range p.arrays {
		if a.typ != "int" && a.typ != "float" {
			continue
		}
		size := a.size * 4
		m.allocate(a.name, fmt.Sprintf("%s array[%d]", a.typ, a.size), fmt.Sprintf("%d bytes", size), size, a.line)
		if a.size > 1000 {
			m.flag(a.line, fmt.Sprintf("Large array declaration (%d elements) on stack", a.size),
				"Consider using dynamic allocation (e.g., new int[]) to avoid stack overflow")
		}
	}

	for _, v := range p.loopVars {
		if size := primitiveSize(cppBaseType(v.typ)); size > 0 {
			m.allocate(v.name, v.typ+" (loop variable)", fmt.Sprintf("%d bytes", size), size, v.line)
		}
	}

	for _, fn := range p.functions {
		p.paramMemory(m, fn)
	}

	for _, l := range p.loops {
		if l.bodyStart < 0 || l.bodyEnd < 0 {
			continue
		}
		body := p.code[l.bodyStart:l.bodyEnd]
		if !strings.Contains(body, "+=") {
			continue
		}
		concat := strings.Contains(body, "string")
		for _, c := range cppConcatRe.FindAllStringSubmatch(body, -1) {
			concat = concat || strVars[c[1]]
		}
		if !concat {
			continue
		}
		const size = 32 * 100
		m.allocate("temporary strings", "string (concatenation in loop)",
			fmt.Sprintf("%d bytes (assumed 100 concatenations)", size), size, l.line)
		m.flag(l.line, "String concatenation in a loop creates multiple temporary objects",
			"Use std::stringstream or pre-allocate string size to avoid reallocations")
	}
	return m.info()
}

// paramMemory sizes the scalar parameters of fn. An array parameter paired
// with an int size parameter is sized from a numeric assignment to that
// parameter name, then from an array argument at a call site, then 100.
func (p *cppProgram) paramMemory(m *memoryReport, fn cppFunc) {
	params := nonEmpty(strings.Split(fn.params, ","))
	for i := range params {
		params[i] = strings.TrimSpace(params[i])
	}
	var arrayParam, sizeParam string

	for i, param := range params {
		fields := strings.Fields(strings.TrimPrefix(param, "const "))
		if len(fields) == 0 {
			continue
		}
		typ := strings.TrimRight(fields[0], "*&")
		name := strings.Trim(fields[len(fields)-1], "*&[]")
		if size := primitiveSize(typ); size > 0 && !strings.Contains(param, "[]") {
			m.allocate(fmt.Sprintf("%s (param in %s)", name, fn.name), typ, fmt.Sprintf("%d bytes", size), size, fn.line)
			continue
		}
		if strings.Contains(param, "[]") {
			arrayParam = name
			for j, other := range params {
				if j != i && strings.HasPrefix(other, "int ") {
					sizeParam = strings.Fields(other)[1]
					break
				}
			}
		}
	}
	if arrayParam == "" || sizeParam == "" {
		return
	}

	elems, ok := p.assigns[sizeParam]
	if !ok {
		elems, ok = p.callArraySize(fn.name)
	}
	if !ok {
		elems = 100
	}

	variable := fmt.Sprintf("%s (array param in %s)", arrayParam, fn.name)
	if !m.has(variable) {
		size := elems * 4
		m.allocate(variable, "int array", fmt.Sprintf("%d bytes (assumed %d elements)", size, elems), size, fn.line)
	}
	if elems > 1000 {
		m.flag(fn.line, fmt.Sprintf("Large array parameter (%d elements) passed to function", elems),
			"Consider passing a reference to a smaller data structure or using a vector with reserved capacity")
	}
}

// callArraySize finds a declared array passed as an argument to name.
func (p *cppProgram) callArraySize(name string) (int, bool) {
	for _, c := range p.calls {
		if c.name != name {
			continue
		}
		for _, arg := range strings.Split(c.text, ",") {
			arg = strings.TrimSpace(arg)
			for _, a := range p.arrays {
				if a.name == arg {
					return a.size, true
				}
			}
		}
	}
	return 0, false
}

// cppBaseType drops qualifiers, namespaces and template arguments.
func cppBaseType(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndex(typ, "::"); i >= 0 {
		typ = typ[i+2:]
	}
	return strings.TrimSpace(typ)
}

// cLiteral returns the contents of a double-quoted string literal.
func cLiteral(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if len(expr) < 2 || expr[0] != '"' || expr[len(expr)-1] != '"' {
		return "", false
	}
	return expr[1 : len(expr)-1], true
}
