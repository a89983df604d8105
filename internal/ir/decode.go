package ir

import (
	"fmt"
	"os"

	"github.com/funvibe/tyunify/internal/typesystem"
	"gopkg.in/yaml.v3"
)

// Load reads and decodes an IR document.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading IR %s: %w", path, err)
	}
	return Decode(data, path)
}

// Decode parses an IR document:
//
//	file: demo.py
//	functions:
//	  - name: scale
//	    params: [{name: x}, {name: k, type: f64}]
//	    returns: f64
//	    body:
//	      - assign: y
//	        value: {op: "*", left: x, right: k}
//	      - return: y
//
// Statements are mappings keyed by assign, return, expr, if (then/else),
// while (body) or for (in/body). Expressions are either scalars (numbers,
// booleans, null, or a bare identifier naming a variable) or mappings keyed
// by int, float, bool, str, none, var, call/args, dyncall/args,
// method/recv/args, op/left/right, op/operand or list. Any expression mapping
// may carry `type` (the local guess). Locations come from the document
// positions. The path argument names the source in locations and errors
// unless the document sets `file`.
func Decode(data []byte, path string) (*Program, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%s: empty IR document", path)
	}

	doc := root.Content[0]
	d := &decoder{file: path}
	fields, err := d.mapping(doc)
	if err != nil {
		return nil, err
	}
	if f, ok := fields["file"]; ok {
		d.file = f.Value
	}

	prog := &Program{File: d.file}
	fnsNode, ok := fields["functions"]
	if !ok {
		return nil, d.errorf(doc, "missing functions")
	}
	if fnsNode.Kind != yaml.SequenceNode {
		return nil, d.errorf(fnsNode, "functions must be a list")
	}
	seen := make(map[string]bool)
	for _, n := range fnsNode.Content {
		fn, err := d.function(n)
		if err != nil {
			return nil, err
		}
		if seen[fn.Name] {
			return nil, d.errorf(n, "function %s defined twice", fn.Name)
		}
		seen[fn.Name] = true
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

type decoder struct {
	file string
}

func (d *decoder) loc(n *yaml.Node) Location {
	return Location{File: d.file, Line: n.Line, Column: n.Column}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", d.loc(n), fmt.Sprintf(format, args...))
}

func (d *decoder) mapping(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out, nil
}

func (d *decoder) typeOf(n *yaml.Node) (typesystem.Concrete, error) {
	if n == nil || n.Tag == "!!null" {
		return nil, nil
	}
	t, err := typesystem.ParseType(n.Value)
	if err != nil {
		return nil, d.errorf(n, "%v", err)
	}
	return t, nil
}

func (d *decoder) function(n *yaml.Node) (*Function, error) {
	fields, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	name, ok := fields["name"]
	if !ok || name.Value == "" {
		return nil, d.errorf(n, "function without name")
	}
	fn := &Function{Name: name.Value, Loc: d.loc(n)}

	if ps, ok := fields["params"]; ok {
		if ps.Kind != yaml.SequenceNode {
			return nil, d.errorf(ps, "params must be a list")
		}
		seen := make(map[string]bool, len(ps.Content))
		for _, pn := range ps.Content {
			p, err := d.param(pn)
			if err != nil {
				return nil, err
			}
			if seen[p.Name] {
				return nil, d.errorf(pn, "duplicate parameter %s in %s", p.Name, fn.Name)
			}
			seen[p.Name] = true
			fn.Params = append(fn.Params, p)
		}
	}
	if fn.RetAnnot, err = d.typeOf(fields["returns"]); err != nil {
		return nil, err
	}
	if body, ok := fields["body"]; ok {
		if fn.Body, err = d.block(body); err != nil {
			return nil, err
		}
	}
	return fn, nil
}

func (d *decoder) param(n *yaml.Node) (*Param, error) {
	if n.Kind == yaml.ScalarNode {
		return &Param{Name: n.Value, Loc: d.loc(n)}, nil
	}
	fields, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	name, ok := fields["name"]
	if !ok {
		return nil, d.errorf(n, "parameter without name")
	}
	annot, err := d.typeOf(fields["type"])
	if err != nil {
		return nil, err
	}
	return &Param{Name: name.Value, Annot: annot, Loc: d.loc(n)}, nil
}

func (d *decoder) block(n *yaml.Node) ([]Statement, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list of statements")
	}
	stmts := make([]Statement, 0, len(n.Content))
	for _, sn := range n.Content {
		s, err := d.statement(sn)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (d *decoder) optBlock(fields map[string]*yaml.Node, key string) ([]Statement, error) {
	n, ok := fields[key]
	if !ok {
		return nil, nil
	}
	return d.block(n)
}

func (d *decoder) statement(n *yaml.Node) (Statement, error) {
	fields, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	loc := d.loc(n)

	switch {
	case fields["assign"] != nil:
		value, ok := fields["value"]
		if !ok {
			return nil, d.errorf(n, "assign without value")
		}
		v, err := d.expression(value)
		if err != nil {
			return nil, err
		}
		annot, err := d.typeOf(fields["type"])
		if err != nil {
			return nil, err
		}
		return &Assign{Target: fields["assign"].Value, Annot: annot, Value: v, Loc: loc}, nil

	case fields["return"] != nil:
		rn := fields["return"]
		if rn.Tag == "!!null" {
			return &Return{Loc: loc}, nil
		}
		v, err := d.expression(rn)
		if err != nil {
			return nil, err
		}
		return &Return{Value: v, Loc: loc}, nil

	case fields["expr"] != nil:
		x, err := d.expression(fields["expr"])
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x, Loc: loc}, nil

	case fields["if"] != nil:
		cond, err := d.expression(fields["if"])
		if err != nil {
			return nil, err
		}
		then, err := d.optBlock(fields, "then")
		if err != nil {
			return nil, err
		}
		els, err := d.optBlock(fields, "else")
		if err != nil {
			return nil, err
		}
		return &If{Cond: cond, Then: then, Else: els, Loc: loc}, nil

	case fields["while"] != nil:
		cond, err := d.expression(fields["while"])
		if err != nil {
			return nil, err
		}
		body, err := d.optBlock(fields, "body")
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body, Loc: loc}, nil

	case fields["for"] != nil:
		iterNode, ok := fields["in"]
		if !ok {
			return nil, d.errorf(n, "for without in")
		}
		iter, err := d.expression(iterNode)
		if err != nil {
			return nil, err
		}
		body, err := d.optBlock(fields, "body")
		if err != nil {
			return nil, err
		}
		return &For{Target: fields["for"].Value, Iter: iter, Body: body, Loc: loc}, nil
	}
	return nil, d.errorf(n, "unknown statement")
}

func (d *decoder) expressions(n *yaml.Node) ([]Expression, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list of expressions")
	}
	out := make([]Expression, 0, len(n.Content))
	for _, en := range n.Content {
		e, err := d.expression(en)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) expression(n *yaml.Node) (Expression, error) {
	info := ExprInfo{Loc: d.loc(n)}

	if n.Kind == yaml.ScalarNode {
		switch n.Tag {
		case "!!int":
			return &Literal{ExprInfo: info, Kind: LitInt, Value: n.Value}, nil
		case "!!float":
			return &Literal{ExprInfo: info, Kind: LitFloat, Value: n.Value}, nil
		case "!!bool":
			return &Literal{ExprInfo: info, Kind: LitBool, Value: n.Value}, nil
		case "!!null":
			return &Literal{ExprInfo: info, Kind: LitNone}, nil
		default:
			return &Name{ExprInfo: info, Ident: n.Value}, nil
		}
	}

	fields, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	if info.Local, err = d.typeOf(fields["type"]); err != nil {
		return nil, err
	}

	lit := func(kind LitKind, key string) (Expression, error) {
		return &Literal{ExprInfo: info, Kind: kind, Value: fields[key].Value}, nil
	}

	switch {
	case fields["int"] != nil:
		return lit(LitInt, "int")
	case fields["float"] != nil:
		return lit(LitFloat, "float")
	case fields["bool"] != nil:
		return lit(LitBool, "bool")
	case fields["str"] != nil:
		return lit(LitString, "str")
	case fields["none"] != nil:
		return &Literal{ExprInfo: info, Kind: LitNone}, nil
	case fields["var"] != nil:
		return &Name{ExprInfo: info, Ident: fields["var"].Value}, nil
	case fields["call"] != nil:
		args, err := d.expressions(fields["args"])
		if err != nil {
			return nil, err
		}
		return &Call{ExprInfo: info, Callee: fields["call"].Value, Args: args}, nil
	case fields["dyncall"] != nil:
		target, err := d.expression(fields["dyncall"])
		if err != nil {
			return nil, err
		}
		args, err := d.expressions(fields["args"])
		if err != nil {
			return nil, err
		}
		return &DynamicCall{ExprInfo: info, Target: target, Args: args}, nil
	case fields["method"] != nil:
		recvNode, ok := fields["recv"]
		if !ok {
			return nil, d.errorf(n, "method call without recv")
		}
		recv, err := d.expression(recvNode)
		if err != nil {
			return nil, err
		}
		args, err := d.expressions(fields["args"])
		if err != nil {
			return nil, err
		}
		return &MethodCall{ExprInfo: info, Receiver: recv, Method: fields["method"].Value, Args: args}, nil
	case fields["op"] != nil:
		op := fields["op"].Value
		if operand, ok := fields["operand"]; ok {
			x, err := d.expression(operand)
			if err != nil {
				return nil, err
			}
			return &Unary{ExprInfo: info, Op: op, Operand: x}, nil
		}
		ln, lok := fields["left"]
		rn, rok := fields["right"]
		if !lok || !rok {
			return nil, d.errorf(n, "binary %q needs left and right", op)
		}
		left, err := d.expression(ln)
		if err != nil {
			return nil, err
		}
		right, err := d.expression(rn)
		if err != nil {
			return nil, err
		}
		return &Binary{ExprInfo: info, Op: op, Left: left, Right: right}, nil
	case fields["list"] != nil:
		elems, err := d.expressions(fields["list"])
		if err != nil {
			return nil, err
		}
		return &List{ExprInfo: info, Elems: elems}, nil
	}
	return nil, d.errorf(n, "unknown expression")
}
