package vm

import (
	"fmt"
	"time"
)

// NativeNames lists the functions every VM predefines.
var NativeNames = []string{"clock", "len", "push", "str"}

func (vm *VM) defineNatives() {
	vm.DefineNative("clock", 0, nativeClock)
	vm.DefineNative("len", 1, nativeLen)
	vm.DefineNative("push", 2, nativePush)
	vm.DefineNative("str", 1, nativeStr)
}

// clock() returns seconds elapsed since the VM was created.
func nativeClock(vm *VM, args []Value) (Value, error) {
	return Number(time.Since(vm.started).Seconds()), nil
}

// len(x) returns the length of an array or string.
func nativeLen(vm *VM, args []Value) (Value, error) {
	switch args[0].Kind() {
	case KindArray:
		return Number(float64(args[0].AsArray().Len())), nil
	case KindString:
		return Number(float64(len(args[0].AsString()))), nil
	}
	return Nil, fmt.Errorf("len() expects an array or string, got %s", args[0].TypeName())
}

// push(array, value) appends value and returns the array.
func nativePush(vm *VM, args []Value) (Value, error) {
	if !args[0].IsArray() {
		return Nil, fmt.Errorf("push() expects an array, got %s", args[0].TypeName())
	}
	arr := args[0].AsArray()
	arr.Elements = append(arr.Elements, args[1])
	return args[0], nil
}

// str(x) returns the display string of any value.
func nativeStr(vm *VM, args []Value) (Value, error) {
	return String(args[0].String()), nil
}
