package analyzer

import (
	"context"
	"testing"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cppSample = `#include <iostream>
using namespace std;

int main() {
    int n = 5;
    int arr[2000];
    for (int i = 0; i < n; i++) {
        cout << i;
    }
    return 0;
}
`

func TestCPPFlow(t *testing.T) {
	prog, err := parseCPPProgram(cppSample)
	require.NoError(t, err)

	g, steps := prog.flow()
	assert.Equal(t, []string{
		"Func_main_0", "Var_n_0", "Array_arr_0", "Loop_0", "Var_i_1", "Print_0", "Return_0",
	}, nodeIDs(steps))

	assert.Equal(t, "Function: main", steps[0].Description)
	assert.Equal(t, 4, *steps[0].Line)
	assert.Equal(t, "Assignment: n = 5", steps[1].Description)
	assert.Equal(t, map[string]any{"n": "5"}, steps[1].Variables)
	assert.Equal(t, "For Loop: int i = 0; i < n; i++", steps[3].Description)
	require.NotNil(t, steps[5].Output)
	assert.Equal(t, "i", *steps[5].Output)
	assert.Equal(t, "Return: 0", steps[6].Description)

	assert.Contains(t, g.Edges, Edge{Source: "Print_0", Target: "Loop_0"})
	assert.Contains(t, g.Edges, Edge{Source: "Loop_0", Target: "Return_0"})
	assert.Contains(t, g.Edges, Edge{Source: "Return_0", Target: EndID})
}

func TestCPPBranchesAndCalls(t *testing.T) {
	code := `int add(int a, int b);

int main() {
    int x = add(1, 2);
    if (x > 2) {
        print(x);
    } else if (x < 0) {
        x = 0;
    } else {
        x = 1;
    }
}
`
	prog, err := parseCPPProgram(code)
	require.NoError(t, err)

	_, steps := prog.flow()
	ids := nodeIDs(steps)
	assert.Contains(t, ids, "if_0")
	assert.Contains(t, ids, "else_if_1")
	assert.Contains(t, ids, "else_2")
	assert.Contains(t, ids, "Call_add_0")
	assert.Contains(t, ids, "Call_print_1")
	assert.NotContains(t, ids, "Func_add_0", "a prototype is not a definition")
}

func TestCPPAnalyses(t *testing.T) {
	resp, err := New().Analyze(context.Background(), domain.LanguageCPP, cppSample)
	require.NoError(t, err)

	assert.Equal(t, "O(n)", resp.ComplexityAnalysis.TimeComplexity)
	assert.Equal(t, []string{"Detected 1 loops, leading to linear time complexity."}, resp.ComplexityAnalysis.Details)

	assert.Empty(t, resp.OptimizationSuggestions.Suggestions)
	assert.Equal(t, cppSample, resp.OptimizationSuggestions.OptimizedCode)

	mem := resp.MemoryAnalysis
	assert.Equal(t, "7.82 KB", mem.EstimatedMemoryUsage)
	require.Len(t, mem.Bottlenecks, 1)
	assert.Equal(t, "Large array declaration (2000 elements) on stack", mem.Bottlenecks[0].Description)
	assert.Equal(t, 6, mem.Bottlenecks[0].Line)
}

func TestCPPMemory(t *testing.T) {
	t.Run("strings vectors and doubles", func(t *testing.T) {
		prog, err := parseCPPProgram(`int main() {
    std::string name = "Bob";
    vector<int> v;
    double d = 1.5;
}`)
		require.NoError(t, err)

		mem := prog.memory()
		require.Len(t, mem.MemoryBreakdown, 3)
		assert.Equal(t, domain.MemoryAllocation{Variable: "name", Type: "string", Size: "35 bytes", Line: 2}, mem.MemoryBreakdown[0])
		assert.Equal(t, "8024 bytes (assumed 1000 elements)", mem.MemoryBreakdown[1].Size)
		assert.Equal(t, "8 bytes", mem.MemoryBreakdown[2].Size)
		require.Len(t, mem.Bottlenecks, 1)
		assert.Equal(t, "Large vector allocation on stack", mem.Bottlenecks[0].Description)
	})

	t.Run("array parameter sized from the call site", func(t *testing.T) {
		prog, err := parseCPPProgram(`void fill(int arr[], int size) {
    arr[0] = 1;
}

int main() {
    int data[5000];
    fill(data, 5000);
}`)
		require.NoError(t, err)

		mem := prog.memory()
		var found bool
		for _, a := range mem.MemoryBreakdown {
			if a.Variable == "arr (array param in fill)" {
				found = true
				assert.Equal(t, "20000 bytes (assumed 5000 elements)", a.Size)
			}
		}
		assert.True(t, found)
		assert.Contains(t, mem.Bottlenecks, domain.MemoryBottleneck{Line: 1, Description: "Large array parameter (5000 elements) passed to function"})
	})

	t.Run("string concatenation in a loop", func(t *testing.T) {
		prog, err := parseCPPProgram(`int main() {
    string s = "";
    for (int i = 0; i < 10; i++) {
        s += "x";
    }
}`)
		require.NoError(t, err)

		mem := prog.memory()
		require.Len(t, mem.Bottlenecks, 1)
		assert.Equal(t, "String concatenation in a loop creates multiple temporary objects", mem.Bottlenecks[0].Description)
		assert.Equal(t, 3, mem.Bottlenecks[0].Line)
	})
}

func TestCPPSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unclosed brace", "int main() {\n  return 0;\n", "'{' was never closed (line 1)"},
		{"stray brace", "int main() {\n}\n}\n", "unexpected '}' (line 3)"},
		{"unterminated string", "int main() {\n  cout << \"hi;\n}\n", "unterminated string literal (line 2)"},
		{"unterminated comment", "/* never closed\nint main() {}\n", "unterminated comment (line 1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCPPProgram(tt.code)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}

	t.Run("surfaces as a flowchart error", func(t *testing.T) {
		resp, err := New().Analyze(context.Background(), domain.LanguageCPP, "int main() {\n")
		require.NoError(t, err)
		assert.Equal(t, "C++ Flowchart Error: '{' was never closed (line 1)", resp.ExecutionSteps[0].Description)
	})
}

func TestBlankComments(t *testing.T) {
	code := "int x = 1; // set x\n/* block\n comment */ int y = \"//not\";\n"
	out, err := blankComments(code)
	require.NoError(t, err)

	assert.Len(t, out, len(code))
	assert.NotContains(t, out, "set x")
	assert.NotContains(t, out, "block")
	assert.Contains(t, out, `"//not"`)
	assert.Equal(t, 3, lineAt(out, len(out)-1))
}
