// Package topaz embeds the topaz scripting language: compile source with
// Compile, or run it with an Interpreter whose globals persist across runs.
package topaz

import (
	"io"

	"github.com/topaz-lang/topaz/compiler"
	"github.com/topaz-lang/topaz/config"
	"github.com/topaz-lang/topaz/vm"
)

// Compile compiles source into a top-level function. The error, if any, is a
// compiler.ErrorList.
func Compile(source string) (*vm.Function, error) {
	return compiler.Compile(source)
}

// Interpreter compiles and runs programs against one VM, so globals defined
// by one Run are visible to the next.
type Interpreter struct {
	cfg *config.Config
	vm  *vm.VM
}

// NewInterpreter creates an interpreter printing to out. A nil cfg means
// config.Default().
func NewInterpreter(cfg *config.Config, out io.Writer) *Interpreter {
	if cfg == nil {
		cfg = config.Default()
	}
	m := vm.NewVM()
	m.SetOutput(out)
	cfg.Apply(m)
	return &Interpreter{cfg: cfg, vm: m}
}

// VM returns the underlying virtual machine.
func (i *Interpreter) VM() *vm.VM {
	return i.vm
}

// Run compiles and executes source. It returns the value of the program's
// trailing expression statement, or nil. Compile failures return a
// compiler.ErrorList and run nothing; runtime failures return a
// *vm.RuntimeError.
func (i *Interpreter) Run(source string) (vm.Value, error) {
	c := compiler.New(source)
	c.SetDisassemble(i.cfg.Compiler.Disassemble)
	fn, err := c.Compile()
	if err != nil {
		return vm.Nil, err
	}
	return i.vm.Run(fn)
}

// Interpret runs source once in a fresh interpreter with default settings.
func Interpret(source string, out io.Writer) (vm.Value, error) {
	return NewInterpreter(nil, out).Run(source)
}
