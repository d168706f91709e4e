// Package testwasm assembles tiny WebAssembly binaries for tests.
package testwasm

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// Opcodes used by the helpers.
const (
	opCall     byte = 0x10
	opI32Const byte = 0x41
	opEnd      byte = 0x0b
)

// Import is an imported function.
type Import struct {
	Module  string
	Name    string
	Params  []byte
	Results []byte
}

// Func is a defined function. Body excludes the trailing end opcode.
// Imported functions occupy the first indices.
type Func struct {
	Export  string
	Params  []byte
	Results []byte
	Body    []byte
}

// Module is a module made of imported and defined functions.
type Module struct {
	Imports []Import
	Funcs   []Func
}

// Encode returns the binary encoding of m.
func (m Module) Encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types [][]byte
	for _, imp := range m.Imports {
		types = append(types, funcType(imp.Params, imp.Results))
	}
	for _, f := range m.Funcs {
		types = append(types, funcType(f.Params, f.Results))
	}
	out = appendSection(out, 1, vec(types))

	if len(m.Imports) > 0 {
		var imports [][]byte
		for i, imp := range m.Imports {
			var b []byte
			b = appendName(b, imp.Module)
			b = appendName(b, imp.Name)
			b = append(b, 0x00)
			b = appendU32(b, uint32(i))
			imports = append(imports, b)
		}
		out = appendSection(out, 2, vec(imports))
	}

	var funcs, exports, code [][]byte
	for i, f := range m.Funcs {
		idx := uint32(len(m.Imports) + i)
		funcs = append(funcs, appendU32(nil, idx))
		if f.Export != "" {
			b := appendName(nil, f.Export)
			b = append(b, 0x00)
			exports = append(exports, appendU32(b, idx))
		}
		body := append([]byte{0x00}, f.Body...) // no locals
		body = append(body, opEnd)
		code = append(code, appendU32(nil, uint32(len(body)), body...))
	}
	if len(funcs) > 0 {
		out = appendSection(out, 3, vec(funcs))
	}
	if len(exports) > 0 {
		out = appendSection(out, 7, vec(exports))
	}
	if len(code) > 0 {
		out = appendSection(out, 10, vec(code))
	}
	return out
}

// Const exports a function called name returning v.
func Const(name string, v int32) []byte {
	return Module{Funcs: []Func{{
		Export:  name,
		Results: []byte{I32},
		Body:    I32Const(v),
	}}}.Encode()
}

// Main exports main returning v.
func Main(v int32) []byte {
	return Const("main", v)
}

// VoidMain exports a main with no result.
func VoidMain() []byte {
	return Module{Funcs: []Func{{Export: "main"}}}.Encode()
}

// Forward exports main, which returns the result of module.name.
func Forward(module, name string) []byte {
	return Module{
		Imports: []Import{{Module: module, Name: name, Results: []byte{I32}}},
		Funcs: []Func{{
			Export:  "main",
			Results: []byte{I32},
			Body:    Call(0),
		}},
	}.Encode()
}

// Reexport exports name, which returns the result of module.field.
func Reexport(name, module, field string) []byte {
	return Module{
		Imports: []Import{{Module: module, Name: field, Results: []byte{I32}}},
		Funcs: []Func{{
			Export:  name,
			Results: []byte{I32},
			Body:    Call(0),
		}},
	}.Encode()
}

// Exit exports _start, which calls WASI proc_exit with code.
func Exit(code int32) []byte {
	return Module{
		Imports: []Import{{Module: "wasi_snapshot_preview1", Name: "proc_exit", Params: []byte{I32}}},
		Funcs: []Func{{
			Export: "_start",
			Body:   append(I32Const(code), Call(0)...),
		}},
	}.Encode()
}

// NoEntry exports only a helper function.
func NoEntry() []byte {
	return Const("helper", 1)
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	return appendS32([]byte{opI32Const}, v)
}

// Call encodes call idx.
func Call(idx uint32) []byte {
	return appendU32([]byte{opCall}, idx)
}

func funcType(params, results []byte) []byte {
	b := []byte{0x60}
	b = appendU32(b, uint32(len(params)), params...)
	return appendU32(b, uint32(len(results)), results...)
}

func vec(items [][]byte) []byte {
	b := appendU32(nil, uint32(len(items)))
	for _, it := range items {
		b = append(b, it...)
	}
	return b
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	return appendU32(out, uint32(len(payload)), payload...)
}

func appendName(b []byte, s string) []byte {
	return appendU32(b, uint32(len(s)), []byte(s)...)
}

func appendU32(b []byte, v uint32, tail ...byte) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
			continue
		}
		b = append(b, c)
		break
	}
	return append(b, tail...)
}

func appendS32(b []byte, v int32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
