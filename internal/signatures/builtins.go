package signatures

import (
	"github.com/funvibe/tyunify/internal/config"
	ts "github.com/funvibe/tyunify/internal/typesystem"
)

// Builtins returns the signatures of the source language's built-in
// functions. Conversions accept any argument; their result type is fixed.
func Builtins() *Table {
	t := NewTable()
	for _, sig := range []*Signature{
		{Name: config.PrintFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.Unit, Variadic: true},
		{Name: config.LenFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.I64},
		{Name: config.IntFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.I64},
		{Name: config.FloatFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.F64},
		{Name: config.StrFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.String},
		{Name: config.BoolFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.Bool},
		{Name: config.AbsFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.Dynamic},
		{Name: config.SqrtFuncName, Params: []ts.Concrete{ts.Dynamic}, Ret: ts.F64},
		{Name: config.RangeFuncName, Params: []ts.Concrete{ts.I64}, Ret: ts.TSeq{Elem: ts.I64}, Variadic: true},
		{Name: config.InputFuncName, Params: []ts.Concrete{ts.StrRef}, Ret: ts.String, Variadic: true},
	} {
		// Static data; validate cannot fail.
		_ = t.Add(sig)
	}
	return t
}
