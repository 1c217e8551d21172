// Package lower translates a resolved structured-IR AST (ir/ast) into
// backend IR: it allocates stack slots for bindings, lowers
// expressions, and lowers conditionals, switches, for-loops, function
// definitions and calls to the primitives exposed by backend.Context.
package lower

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mna/cfront/backend"
	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/builtin"
	"github.com/mna/cfront/ir/token"
)

// nearCallPrefix marks a user function that must be invoked through the
// backend's near-call convention.
const nearCallPrefix = "zkSyncNearCall_"

// LibraryResolver resolves a linkersymbol "file:name" reference to its
// hex address. A nil resolver leaves linkersymbol to the backend's
// intrinsic dispatch.
type LibraryResolver func(ref string) (string, error)

// Object lowers a full (deploy [+ nested runtime]) object into ctx. It
// returns an error only for conditions the lowering pass itself can
// detect (unknown identifier, arity mismatch, unresolved linkersymbol);
// everything else is a backend error propagated verbatim.
func Object(ctx backend.Context, obj *ast.Object, libs LibraryResolver) error {
	kind := backend.Deploy
	if obj.IsRuntime() {
		kind = backend.Runtime
	}
	if err := lowerCode(ctx, kind, obj.Code, libs); err != nil {
		return fmt.Errorf("object %q: %w", obj.Identifier, err)
	}
	if obj.Inner != nil {
		if err := Object(ctx, obj.Inner, libs); err != nil {
			return err
		}
	}
	return nil
}

func lowerCode(ctx backend.Context, kind backend.CodeKind, code *ast.Block, libs LibraryResolver) error {
	l := &lowering{ctx: ctx, kind: kind, libs: libs, funcs: map[string]*funcInfo{}}
	entry := ctx.DeclareFunction("entry", kind, 0, 0, false)
	fc := &funcScope{fn: entry, scopes: []scope{{}}}
	l.fn = fc
	ctx.SetFunction(entry)
	entryBlk := ctx.NewBlock("entry")
	fc.retBlk = ctx.NewBlock("entry.return")
	l.setBlock(entryBlk)

	// block predeclares the top level's function definitions before
	// lowering any statement, so forward references resolve.
	if err := l.block(code); err != nil {
		return err
	}
	ctx.Jump(fc.retBlk)
	ctx.SetBlock(fc.retBlk)
	ctx.Return()
	return nil
}

// funcInfo records a predeclared user function's backend handle and arity,
// so forward references within the same block resolve (function
// arities match at declaration and call sites).
type funcInfo struct {
	handle     backend.Func
	paramCount int
	resultCnt  int
	nearCall   bool
}

type loopCtx struct {
	breakBlk, continueBlk backend.Block
}

type scope map[string]backend.Value // identifier -> slot pointer

type funcScope struct {
	fn         backend.Func
	scopes     []scope
	loops      []loopCtx
	retBlk     backend.Block
	curBlk     backend.Block            // last block set while lowering this function
	resultSlot map[string]backend.Value // name -> slot, read back at the return block
}

func (fs *funcScope) push() { fs.scopes = append(fs.scopes, scope{}) }
func (fs *funcScope) pop()  { fs.scopes = fs.scopes[:len(fs.scopes)-1] }

// setBlock makes b the backend's current block and records it as the
// enclosing function's, so that a nested function definition can restore
// it when its own lowering completes.
func (l *lowering) setBlock(b backend.Block) {
	l.fn.curBlk = b
	l.ctx.SetBlock(b)
}
func (fs *funcScope) bind(name string, slot backend.Value) {
	fs.scopes[len(fs.scopes)-1][name] = slot
}
func (fs *funcScope) lookup(name string) (backend.Value, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if v, ok := fs.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

type lowering struct {
	ctx   backend.Context
	kind  backend.CodeKind
	libs  LibraryResolver
	funcs map[string]*funcInfo
	fn    *funcScope
}

// predeclare registers every FunctionDefinition that is a direct child of
// block so that calls anywhere in the block (including textually before
// the definition) resolve, matching structured-IR's function-hoisting
// semantics.
func (l *lowering) predeclare(block *ast.Block) error {
	for _, st := range block.Stmts {
		fd, ok := st.(*ast.FunctionDefinition)
		if !ok {
			continue
		}
		if _, exists := l.funcs[fd.Name]; exists {
			return fmt.Errorf("%s: duplicate function %q", fd.Position, fd.Name)
		}
		nearCall := strings.HasPrefix(fd.Name, nearCallPrefix)
		paramCount := len(fd.Parameters)
		resultCnt := len(fd.Results)
		declParamCount := paramCount
		if resultCnt > 1 {
			declParamCount++ // hidden pointer-to-struct first parameter
		}
		handle := l.ctx.DeclareFunction(fd.Name, l.kind, declParamCount, resultCnt, nearCall)
		l.funcs[fd.Name] = &funcInfo{handle: handle, paramCount: paramCount, resultCnt: resultCnt, nearCall: nearCall}
	}
	return nil
}

func (l *lowering) block(b *ast.Block) error {
	l.fn.push()
	defer l.fn.pop()
	if err := l.predeclare(b); err != nil {
		return err
	}
	for _, st := range b.Stmts {
		if err := l.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowering) stmt(st ast.Stmt) error {
	switch s := st.(type) {
	case *ast.FunctionDefinition:
		return l.functionDef(s)
	case *ast.VariableDeclaration:
		return l.variableDecl(s)
	case *ast.Assignment:
		return l.assignment(s)
	case *ast.IfConditional:
		return l.ifConditional(s)
	case *ast.Switch:
		return l.switchStmt(s)
	case *ast.ForLoop:
		return l.forLoop(s)
	case *ast.ControlStmt:
		return l.control(s)
	case *ast.BlockStmt:
		return l.block(s.Block)
	case *ast.ExprStmt:
		_, err := l.callMulti(s.Call)
		return err
	case *ast.BadStmt:
		return fmt.Errorf("%s: cannot lower a statement that failed to parse", s.Position)
	default:
		return fmt.Errorf("lower: unhandled statement type %T", st)
	}
}

// functionDef lowers a user function body into its own entry block,
// allocating slots for parameters and return bindings.
func (l *lowering) functionDef(fd *ast.FunctionDefinition) error {
	info := l.funcs[fd.Name]
	outer := l.fn
	l.ctx.SetFunction(info.handle)

	fs := &funcScope{fn: info.handle, scopes: []scope{{}}, resultSlot: map[string]backend.Value{}}
	l.fn = fs
	entryBlk := l.ctx.NewBlock(fd.Name + ".entry")
	fs.retBlk = l.ctx.NewBlock(fd.Name + ".return")
	l.setBlock(entryBlk)

	hiddenPtr := len(fd.Results) > 1
	paramBase := 0
	var hiddenSlot backend.Value
	if hiddenPtr {
		hiddenSlot = l.ctx.Param(0)
		paramBase = 1
	}
	for i, p := range fd.Parameters {
		slot := l.ctx.Alloca(1)
		l.ctx.Store(slot, l.ctx.Param(paramBase+i))
		fs.bind(p.Name, slot)
	}
	for _, r := range fd.Results {
		slot := l.ctx.Alloca(1)
		zero := l.ctx.ConstInt(r.ResolvedType().Bits, r.ResolvedType().Signed, big.NewInt(0))
		l.ctx.Store(slot, zero)
		fs.bind(r.Name, slot)
		fs.resultSlot[r.Name] = slot
	}

	if err := l.block(fd.Body); err != nil {
		l.fn = outer
		return err
	}
	l.ctx.Jump(fs.retBlk)
	l.setBlock(fs.retBlk)

	switch {
	case hiddenPtr:
		for i, r := range fd.Results {
			v := l.ctx.Load(fs.resultSlot[r.Name])
			l.ctx.Store(l.ctx.GEP(hiddenSlot, i), v)
		}
		l.ctx.Return()
	case len(fd.Results) == 1:
		v := l.ctx.Load(fs.resultSlot[fd.Results[0].Name])
		l.ctx.Return(v)
	default:
		l.ctx.Return()
	}

	// hand the backend back to the enclosing function's current block.
	l.fn = outer
	l.ctx.SetFunction(outer.fn)
	if outer.curBlk != nil {
		l.ctx.SetBlock(outer.curBlk)
	}
	return nil
}

func (l *lowering) variableDecl(vd *ast.VariableDeclaration) error {
	vals, err := l.initializerValues(vd.Initializer, vd.Bindings)
	if err != nil {
		return err
	}
	for i, b := range vd.Bindings {
		slot := l.ctx.Alloca(1)
		l.ctx.Store(slot, vals[i])
		l.fn.bind(b.Name, slot)
	}
	return nil
}

func (l *lowering) assignment(as *ast.Assignment) error {
	tis := make([]ast.TypedIdent, len(as.Bindings))
	for i, n := range as.Bindings {
		tis[i] = ast.TypedIdent{Name: n}
	}
	vals, err := l.initializerValues(as.Initializer, tis)
	if err != nil {
		return err
	}
	for i, name := range as.Bindings {
		slot, ok := l.fn.lookup(name)
		if !ok {
			return fmt.Errorf("%s: assignment to undeclared identifier %q", as.Position, name)
		}
		l.ctx.Store(slot, vals[i])
	}
	return nil
}

// initializerValues evaluates init (possibly nil, meaning zero-init) into
// exactly len(bindings) values.
func (l *lowering) initializerValues(init ast.Expr, bindings []ast.TypedIdent) ([]backend.Value, error) {
	if init == nil {
		vals := make([]backend.Value, len(bindings))
		for i, b := range bindings {
			vals[i] = l.ctx.ConstInt(b.ResolvedType().Bits, b.ResolvedType().Signed, big.NewInt(0))
		}
		return vals, nil
	}
	call, ok := init.(*ast.FunctionCall)
	if !ok || len(bindings) == 1 {
		v, err := l.expr(init)
		if err != nil {
			return nil, err
		}
		if len(bindings) != 1 {
			return nil, fmt.Errorf("%s: expected %d values, a bare expression produces 1", init.Pos(), len(bindings))
		}
		return []backend.Value{v}, nil
	}
	vals, err := l.callMulti(call)
	if err != nil {
		return nil, err
	}
	if len(vals) != len(bindings) {
		return nil, fmt.Errorf("%s: call %q produces %d values, %d bindings expected", call.Position, call.Name, len(vals), len(bindings))
	}
	return vals, nil
}

func (l *lowering) control(cs *ast.ControlStmt) error {
	switch cs.Kind {
	case ast.Leave:
		l.ctx.Jump(l.fn.retBlk)
	case ast.Break:
		if len(l.fn.loops) == 0 {
			return fmt.Errorf("%s: break outside of a loop", cs.Position)
		}
		l.ctx.Jump(l.fn.loops[len(l.fn.loops)-1].breakBlk)
	case ast.Continue:
		if len(l.fn.loops) == 0 {
			return fmt.Errorf("%s: continue outside of a loop", cs.Position)
		}
		l.ctx.Jump(l.fn.loops[len(l.fn.loops)-1].continueBlk)
	}
	// Any statements textually following break/continue/leave within the
	// same block are unreachable; give them a fresh block to land in so the
	// one we just terminated keeps a single terminator.
	l.openDeadBlock()
	return nil
}

// linkersymbol resolves a "file:name" string-literal argument through the
// library table and materializes the address as a constant.
func (l *lowering) linkersymbol(call *ast.FunctionCall) ([]backend.Value, error) {
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("%s: linkersymbol expects 1 argument, got %d", call.Position, len(call.Args))
	}
	lit, ok := call.Args[0].(*ast.Literal)
	if !ok || lit.Kind != token.STRING {
		return nil, fmt.Errorf("%s: linkersymbol requires a string literal argument", call.Position)
	}
	addr, err := l.libs(lit.Str)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Position, err)
	}
	n, ok := new(big.Int).SetString(addr, 16)
	if !ok {
		return nil, fmt.Errorf("%s: linkersymbol %q: bad address %q", call.Position, lit.Str, addr)
	}
	return []backend.Value{l.ctx.ConstInt(256, false, n)}, nil
}

// callMulti dispatches a call by name: unknown names are user-defined
// function calls.
func (l *lowering) callMulti(call *ast.FunctionCall) ([]backend.Value, error) {
	if call.Name == "linkersymbol" && l.libs != nil {
		return l.linkersymbol(call)
	}
	if sig, ok := builtin.Lookup(call.Name); ok {
		if !sig.Variadic && len(call.Args) != sig.Inputs {
			return nil, fmt.Errorf("%s: %s expects %d arguments, got %d", call.Position, call.Name, sig.Inputs, len(call.Args))
		}
		args := make([]backend.Value, len(call.Args))
		for i, a := range call.Args {
			v, err := l.expr(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return l.ctx.Intrinsic(call.Name, args)
	}

	info, ok := l.funcs[call.Name]
	if !ok {
		return nil, fmt.Errorf("%s: call to undeclared function %q", call.Position, call.Name)
	}
	if len(call.Args) != info.paramCount {
		return nil, fmt.Errorf("%s: %s expects %d arguments, got %d", call.Position, call.Name, info.paramCount, len(call.Args))
	}

	var hiddenPtr backend.Value
	var args []backend.Value
	if info.resultCnt > 1 {
		hiddenPtr = l.ctx.Alloca(info.resultCnt)
		args = append(args, hiddenPtr)
	}
	for _, a := range call.Args {
		v, err := l.expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	var invoke func(backend.Func, []backend.Value) []backend.Value
	if info.nearCall {
		invoke = l.ctx.InvokeNearCall
	} else {
		invoke = l.ctx.Call
	}
	res := invoke(info.handle, args)

	switch {
	case info.resultCnt > 1:
		out := make([]backend.Value, info.resultCnt)
		for i := range out {
			out[i] = l.ctx.Load(l.ctx.GEP(hiddenPtr, i))
		}
		return out, nil
	case info.resultCnt == 1:
		return res, nil
	default:
		return nil, nil
	}
}
