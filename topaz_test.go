package topaz

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/topaz-lang/topaz/compiler"
	"github.com/topaz-lang/topaz/config"
	"github.com/topaz-lang/topaz/vm"
)

const (
	expectOutput       = "# expect: "
	expectRuntimeError = "# expect runtime error: "
)

// scriptExpectations collects the expected output lines and runtime error
// from a script's annotations.
func scriptExpectations(source string) (output []string, runtimeErr string) {
	sc := bufio.NewScanner(strings.NewReader(source))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, expectOutput); i >= 0 {
			output = append(output, line[i+len(expectOutput):])
		}
		if i := strings.Index(line, expectRuntimeError); i >= 0 {
			runtimeErr = line[i+len(expectRuntimeError):]
		}
	}
	return output, runtimeErr
}

func outputLines(out string) []string {
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scripts", "*.tpz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scripts found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			source := string(data)
			wantOut, wantErr := scriptExpectations(source)

			var out bytes.Buffer
			_, err = Interpret(source, &out)

			switch {
			case wantErr == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case wantErr != "" && err == nil:
				t.Fatalf("succeeded, want runtime error %q", wantErr)
			case wantErr != "":
				if !vm.IsRuntimeError(err) {
					t.Fatalf("error %v is not a runtime error", err)
				}
				if !strings.Contains(err.Error(), wantErr) {
					t.Errorf("error = %q, want %q", err, wantErr)
				}
			}

			got := outputLines(out.String())
			if len(got) != len(wantOut) {
				t.Fatalf("output has %d lines, want %d\ngot:\n%s", len(got), len(wantOut), out.String())
			}
			for i := range got {
				if got[i] != wantOut[i] {
					t.Errorf("line %d = %q, want %q", i+1, got[i], wantOut[i])
				}
			}
		})
	}
}

type scenario struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Output string `yaml:"output"`
	Error  string `yaml:"error"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "scenarios.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var scenarios []scenario
	if err := yaml.NewDecoder(f).Decode(&scenarios); err != nil {
		t.Fatalf("decode scenarios: %v", err)
	}
	return scenarios
}

func TestScenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := Interpret(sc.Source, &out)
			if sc.Error == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sc.Error != "" {
				if err == nil {
					t.Fatalf("succeeded, want error %q", sc.Error)
				}
				if !strings.Contains(err.Error(), sc.Error) {
					t.Errorf("error = %q, want %q", err, sc.Error)
				}
			}
			if out.String() != sc.Output {
				t.Errorf("output = %q, want %q", out.String(), sc.Output)
			}
		})
	}
}

func TestInterpreterGlobalsPersist(t *testing.T) {
	var out bytes.Buffer
	interp := NewInterpreter(nil, &out)

	if _, err := interp.Run("fn double(n) { n * 2 }\ncount = 1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := interp.Run("print missing"); err == nil {
		t.Fatal("reading an undefined global succeeded")
	}
	result, err := interp.Run("count = double(count + 1)\ncount")
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if !result.IsNumber() || result.AsNumber() != 4 {
		t.Errorf("result = %v, want 4", result)
	}
	if v, ok := interp.VM().Global("count"); !ok || v.AsNumber() != 4 {
		t.Errorf("global count = %v (defined %v), want 4", v, ok)
	}
	if depth := interp.VM().StackDepth(); depth != 0 {
		t.Errorf("stack depth after runs = %d, want 0", depth)
	}
}

func TestInterpreterErrorTypes(t *testing.T) {
	var out bytes.Buffer
	interp := NewInterpreter(nil, &out)

	_, err := interp.Run("print (1 +")
	list, ok := compiler.AsErrorList(err)
	if !ok {
		t.Fatalf("compile failure %v (%T) is not an ErrorList", err, err)
	}
	if first := list.First(); first == nil || first.Line != 1 {
		t.Errorf("first error = %v, want one on line 1", first)
	}
	if vm.IsRuntimeError(err) {
		t.Error("compile failure reported as a runtime error")
	}

	_, err = interp.Run("print 1\nprint -\"x\"")
	if !vm.IsRuntimeError(err) {
		t.Fatalf("runtime failure %v (%T) is not a RuntimeError", err, err)
	}
	if !strings.HasSuffix(err.Error(), "[line 2]") {
		t.Errorf("error = %q, want it positioned on line 2", err)
	}
	if out.String() != "1\n" {
		t.Errorf("output = %q, want %q", out.String(), "1\n")
	}
}

func TestInterpreterConfig(t *testing.T) {
	cfg := config.Default()
	cfg.VM.MaxFrames = 4

	var out bytes.Buffer
	interp := NewInterpreter(cfg, &out)
	_, err := interp.Run("fn down(n) { if n > 0 { return down(n - 1) } return 0 }\nprint down(2)")
	if err != nil {
		t.Fatalf("shallow recursion failed: %v", err)
	}
	_, err = interp.Run("down(10)")
	if err == nil || !strings.Contains(err.Error(), "Stack overflow") {
		t.Errorf("error = %v, want Stack overflow", err)
	}
}

func TestIndependentInterpreters(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	outputs := make([]bytes.Buffer, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := fmt.Sprintf("x = %d\ni = 0\nwhile i < 100 { x = x + 1 i = i + 1 }\nprint x", i)
			_, errs[i] = Interpret(source, &outputs[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Errorf("worker %d: %v", i, errs[i])
			continue
		}
		if want := fmt.Sprintf("%d\n", i+100); outputs[i].String() != want {
			t.Errorf("worker %d output = %q, want %q", i, outputs[i].String(), want)
		}
	}
}

func TestCompile(t *testing.T) {
	fn, err := Compile("fn f(a) { a }")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if fn.Name != "" {
		t.Errorf("script name = %q, want empty", fn.Name)
	}
	if _, err := Compile("fn"); err == nil {
		t.Error("Compile(\"fn\") succeeded, want error")
	}
}
