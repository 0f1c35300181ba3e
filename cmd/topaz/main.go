// topaz - run a topaz script, or start an interactive shell
//
// Usage:
//
//	topaz            # interactive shell
//	topaz script.tpz # run a file
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/topaz-lang/topaz"
	"github.com/topaz-lang/topaz/compiler"
	"github.com/topaz-lang/topaz/config"
	"github.com/topaz-lang/topaz/vm"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 64
	exitCompile = 65
	exitRuntime = 70
	exitIO      = 74
)

var log = commonlog.GetLogger("topaz.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	switch len(args) {
	case 0:
		cfg, err := loadConfig(".", stderr)
		if err != nil {
			return exitIO
		}
		repl(topaz.NewInterpreter(cfg, stdout), stdin, stdout, stderr)
		return exitOK
	case 1:
		return runFile(args[0], stdout, stderr)
	default:
		fmt.Fprintln(stderr, "usage: topaz [path]")
		return exitUsage
	}
}

func loadConfig(dir string, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, err
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

func runFile(path string, stdout, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Could not read file %q: %v\n", path, err)
		return exitIO
	}

	cfg, err := loadConfig(filepath.Dir(path), stderr)
	if err != nil {
		return exitIO
	}

	log.Debugf("running %s", path)
	_, err = topaz.NewInterpreter(cfg, stdout).Run(string(source))
	return report(err, stderr)
}

// report prints err and maps it to an exit code.
func report(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, err)
	if _, ok := compiler.AsErrorList(err); ok {
		return exitCompile
	}
	return exitRuntime
}

// repl reads one line at a time and runs it against a persistent
// interpreter. Errors are printed and the shell keeps going.
func repl(interp *topaz.Interpreter, stdin io.Reader, stdout, stderr io.Writer) {
	fmt.Fprintln(stdout, "topaz shell (type 'exit' to quit, ':help' for commands)")

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case strings.HasPrefix(line, ":"):
			handleCommand(interp, line, stdout)
			continue
		}

		result, err := interp.Run(line)
		if err != nil {
			fmt.Fprintln(stderr, err)
			continue
		}
		if !result.IsNil() {
			fmt.Fprintln(stdout, result)
		}
	}
}

func handleCommand(interp *topaz.Interpreter, line string, stdout io.Writer) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Fprintln(stdout, "  :globals        list defined globals")
		fmt.Fprintln(stdout, "  :dis <name>     disassemble a global function")
		fmt.Fprintln(stdout, "  exit, quit      leave the shell")
	case ":globals":
		for _, name := range interp.VM().GlobalNames() {
			v, _ := interp.VM().Global(name)
			fmt.Fprintf(stdout, "  %s = %s\n", name, v)
		}
	case ":dis":
		if len(fields) != 2 {
			fmt.Fprintln(stdout, "usage: :dis <name>")
			return
		}
		v, ok := interp.VM().Global(fields[1])
		if !ok || !v.IsFunction() || v.AsFunction().Native != nil {
			fmt.Fprintf(stdout, "%s is not a compiled function\n", fields[1])
			return
		}
		vm.Disassemble(stdout, v.AsFunction())
	default:
		fmt.Fprintf(stdout, "Unknown command %s (try :help)\n", fields[0])
	}
}
