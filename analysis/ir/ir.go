// Package ir defines the mid-level IR documents the compiler driver exports
// for each crate: function bodies in MIR form, the struct definitions with
// their raw attribute payloads, and the original source files. Every analysis
// in this repository is a pure function over these values.
package ir

import "fmt"

// Local identifies a MIR local within one function body. Local 0 is the
// return place; locals 1..=ArgCount are the function parameters.
type Local int

// BlockID identifies a basic block within one function body.
type BlockID int

// Span is a source location. Line numbers are 1-based; a zero Span means
// "no location".
type Span struct {
	File          string `json:"file"`
	Line          int    `json:"line"`
	Col           int    `json:"col"`
	EndLine       int    `json:"end_line"`
	FromExpansion bool   `json:"from_expansion,omitempty"`
}

// IsZero reports whether the span carries no location.
func (s Span) IsZero() bool { return s.File == "" && s.Line == 0 }

func (s Span) String() string {
	if s.IsZero() {
		return "<no location>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// SameLine reports whether two spans point at the same file line.
func (s Span) SameLine(other Span) bool {
	return s.File == other.File && s.Line == other.Line
}

// ProjectionKind distinguishes place projections.
type ProjectionKind string

const (
	ProjDeref ProjectionKind = "deref"
	ProjField ProjectionKind = "field"
	ProjIndex ProjectionKind = "index"
)

// Projection is one step of a place projection, e.g. a field access or a
// dereference.
type Projection struct {
	Kind  ProjectionKind `json:"kind"`
	Field int            `json:"field,omitempty"`
	Name  string         `json:"name,omitempty"`
}

// Place is a MIR place: a local plus a (possibly empty) projection chain.
type Place struct {
	Local       Local        `json:"local"`
	Projections []Projection `json:"projections,omitempty"`
}

func (p Place) String() string {
	s := fmt.Sprintf("_%d", p.Local)
	for _, proj := range p.Projections {
		switch proj.Kind {
		case ProjDeref:
			s += ".*"
		case ProjField:
			if proj.Name != "" {
				s += "." + proj.Name
			} else {
				s += fmt.Sprintf(".%d", proj.Field)
			}
		case ProjIndex:
			s += "[_]"
		}
	}
	return s
}

// AsLocal returns the place's local when the place has no projections.
func (p Place) AsLocal() (Local, bool) {
	if len(p.Projections) == 0 {
		return p.Local, true
	}
	return -1, false
}

// OperandKind distinguishes MIR operands.
type OperandKind string

const (
	OpCopy     OperandKind = "copy"
	OpMove     OperandKind = "move"
	OpConstant OperandKind = "const"
)

// Operand is a MIR operand: a copy or move out of a place, or a constant.
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Place Place       `json:"place,omitempty"`
	Const *Constant   `json:"const,omitempty"`
}

// Constant is a literal or promoted constant with its type.
type Constant struct {
	Type  *Type  `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// IsConstant reports whether the operand is a constant.
func (o Operand) IsConstant() bool { return o.Kind == OpConstant }

// AsLocal returns the operand's local when the operand is a copy or move of
// a plain local.
func (o Operand) AsLocal() (Local, bool) {
	if o.Kind == OpCopy || o.Kind == OpMove {
		return o.Place.AsLocal()
	}
	return -1, false
}

// PlaceLocal returns the base local of a copy/move operand regardless of
// projections.
func (o Operand) PlaceLocal() (Local, bool) {
	if o.Kind == OpCopy || o.Kind == OpMove {
		return o.Place.Local, true
	}
	return -1, false
}

// RvalueKind distinguishes the right-hand sides of MIR assignments.
type RvalueKind string

const (
	RvUse          RvalueKind = "use"
	RvRef          RvalueKind = "ref"
	RvCast         RvalueKind = "cast"
	RvCopyForDeref RvalueKind = "copy_for_deref"
	RvAggregate    RvalueKind = "aggregate"
	RvBinaryOp     RvalueKind = "binary_op"
	RvDiscriminant RvalueKind = "discriminant"
	RvOther        RvalueKind = "other"
)

// Rvalue is the right-hand side of an assignment statement.
type Rvalue struct {
	Kind RvalueKind `json:"kind"`
	// Operand is set for use and cast rvalues.
	Operand *Operand `json:"operand,omitempty"`
	// Place is set for ref, copy_for_deref and discriminant rvalues.
	Place *Place `json:"place,omitempty"`
	// Aggregate fields, in declaration order, for aggregate rvalues.
	Operands []Operand `json:"operands,omitempty"`
	// Adt is the canonical path of the aggregate's type, when known.
	Adt string `json:"adt,omitempty"`
	// Op is the operator of a binary_op rvalue, e.g. "Eq", "Ne", "Gt".
	Op string `json:"op,omitempty"`
	// Left and Right are the operands of a binary_op rvalue.
	Left  *Operand `json:"left,omitempty"`
	Right *Operand `json:"right,omitempty"`
}

// StatementKind distinguishes MIR statements.
type StatementKind string

const (
	StAssign StatementKind = "assign"
	StOther  StatementKind = "other"
)

// Statement is a MIR statement. Only assignments carry payload; everything
// else is opaque to the analyses.
type Statement struct {
	Kind   StatementKind `json:"kind"`
	Place  Place         `json:"place,omitempty"`
	Rvalue *Rvalue       `json:"rvalue,omitempty"`
	Span   Span          `json:"span"`
}

// TerminatorKind distinguishes MIR terminators.
type TerminatorKind string

const (
	TermCall        TerminatorKind = "call"
	TermSwitchInt   TerminatorKind = "switch_int"
	TermGoto        TerminatorKind = "goto"
	TermReturn      TerminatorKind = "return"
	TermDrop        TerminatorKind = "drop"
	TermAssert      TerminatorKind = "assert"
	TermUnreachable TerminatorKind = "unreachable"
)

// Arg is a call argument with the span of the argument expression.
type Arg struct {
	Operand Operand `json:"operand"`
	Span    Span    `json:"span"`
}

// SwitchTarget is one arm of a switch_int terminator.
type SwitchTarget struct {
	Value uint64  `json:"value"`
	Block BlockID `json:"block"`
}

// Terminator ends a basic block.
type Terminator struct {
	Kind TerminatorKind `json:"kind"`
	Span Span           `json:"span"`

	// Call terminators.
	Func        FuncRef `json:"func,omitempty"`
	Args        []Arg   `json:"args,omitempty"`
	Destination Place   `json:"destination,omitempty"`
	Target      *BlockID `json:"target,omitempty"`
	Cleanup     *BlockID `json:"cleanup,omitempty"`

	// SwitchInt terminators.
	Discr     *Operand       `json:"discr,omitempty"`
	Targets   []SwitchTarget `json:"targets,omitempty"`
	Otherwise *BlockID       `json:"otherwise,omitempty"`

	// Goto, drop and assert terminators.
	GotoTarget *BlockID `json:"goto_target,omitempty"`
}

// FuncRef identifies a callee.
type FuncRef struct {
	// Path is the canonical def path, e.g. "anchor_spl::token::transfer".
	Path string `json:"path"`
	// Name is the plain item name, e.g. "transfer" or "new_with_signer".
	Name string `json:"name"`
	// Return is the callee's return type, when known.
	Return *Type `json:"return,omitempty"`
}

// Successors returns the successor blocks of the terminator in a fixed order.
func (t *Terminator) Successors() []BlockID {
	var succs []BlockID
	add := func(b *BlockID) {
		if b != nil {
			succs = append(succs, *b)
		}
	}
	switch t.Kind {
	case TermCall:
		add(t.Target)
		add(t.Cleanup)
	case TermSwitchInt:
		for _, tgt := range t.Targets {
			succs = append(succs, tgt.Block)
		}
		add(t.Otherwise)
	case TermGoto, TermDrop, TermAssert:
		add(t.GotoTarget)
		add(t.Cleanup)
	}
	return succs
}

// AsStaticIf decomposes a two-way boolean switch into (value, then, else).
// The "then" block is the target taken when the discriminant equals value.
func (t *Terminator) AsStaticIf() (value uint64, then BlockID, els BlockID, ok bool) {
	if t.Kind != TermSwitchInt || len(t.Targets) != 1 || t.Otherwise == nil {
		return 0, 0, 0, false
	}
	return t.Targets[0].Value, t.Targets[0].Block, *t.Otherwise, true
}

// BasicBlock is a straight-line sequence of statements plus a terminator.
type BasicBlock struct {
	Statements []Statement `json:"statements"`
	Terminator Terminator  `json:"terminator"`
}

// LocalDecl describes one MIR local: its type and the span of the binding
// that introduced it.
type LocalDecl struct {
	Type *Type `json:"type"`
	Span Span  `json:"span"`
}

// Param carries the HIR-side information about a function parameter: the
// source-level binding name (empty on exotic patterns) and the pattern span.
type Param struct {
	Name string `json:"name"`
	Span Span   `json:"span"`
}

// Body is the MIR of one function together with the HIR parameter facts the
// analyses need.
type Body struct {
	// DefPath is the canonical path of the function, unique per crate.
	DefPath string `json:"def_path"`
	Name    string `json:"name"`
	Span    Span   `json:"span"`
	// ArgCount is the number of parameters; parameters are locals 1..=ArgCount.
	ArgCount int          `json:"arg_count"`
	Locals   []LocalDecl  `json:"locals"`
	Blocks   []BasicBlock `json:"blocks"`
	Params   []Param      `json:"params"`
	// TraitMethod marks bodies only reachable as trait items; the nested
	// propagator cannot descend into them.
	TraitMethod bool `json:"trait_method,omitempty"`
	// UnsatisfiablePreds marks functions whose where-clauses are
	// unsatisfiable; lints skip them entirely.
	UnsatisfiablePreds bool `json:"unsatisfiable_preds,omitempty"`
}

// LocalDecl returns the declaration of l, or nil when out of range.
func (b *Body) LocalDecl(l Local) *LocalDecl {
	if l < 0 || int(l) >= len(b.Locals) {
		return nil
	}
	return &b.Locals[l]
}

// LocalType returns the peeled type of l, or nil.
func (b *Body) LocalType(l Local) *Type {
	if decl := b.LocalDecl(l); decl != nil && decl.Type != nil {
		return decl.Type.Peel()
	}
	return nil
}

// LocalSpan returns the declaration span of l.
func (b *Body) LocalSpan(l Local) Span {
	if decl := b.LocalDecl(l); decl != nil {
		return decl.Span
	}
	return Span{}
}

// IsParam reports whether l is a function parameter.
func (b *Body) IsParam(l Local) bool {
	return l >= 1 && int(l) <= b.ArgCount
}

// Block returns the basic block with the given id, or nil when out of range.
func (b *Body) Block(id BlockID) *BasicBlock {
	if id < 0 || int(id) >= len(b.Blocks) {
		return nil
	}
	return &b.Blocks[id]
}

// FieldDef is one field of a user struct, with the raw payloads of its
// #[account(...)] attributes as token text.
type FieldDef struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
	Span Span   `json:"span"`
	// AccountAttrs holds the inside of each #[account(...)] attribute,
	// e.g. `mut, seeds = [b"pool", authority.key().as_ref()], bump`.
	AccountAttrs []string `json:"account_attrs,omitempty"`
}

// StructDef is a user struct definition lifted from HIR.
type StructDef struct {
	Path   string     `json:"path"`
	Name   string     `json:"name"`
	Span   Span       `json:"span"`
	Fields []FieldDef `json:"fields"`
	// DeriveAccounts marks #[derive(Accounts)] structs.
	DeriveAccounts bool `json:"derive_accounts,omitempty"`
}

// Field returns the named field, or nil.
func (s *StructDef) Field(name string) *FieldDef {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Program is one crate's worth of analysis input.
type Program struct {
	Crate     string            `json:"crate"`
	Functions []*Body           `json:"functions"`
	Structs   []*StructDef      `json:"structs"`
	Sources   map[string]string `json:"sources"`

	structsByPath map[string]*StructDef
	funcsByPath   map[string]*Body
}

// Struct resolves a struct definition by canonical path, falling back to a
// path-suffix match the same way type identity falls back from diagnostic
// items to def paths.
func (p *Program) Struct(path string) *StructDef {
	p.index()
	if s, ok := p.structsByPath[path]; ok {
		return s
	}
	for _, s := range p.Structs {
		if pathEndsWith(path, s.Name) {
			return s
		}
	}
	return nil
}

// Function resolves a function body by canonical path.
func (p *Program) Function(path string) *Body {
	p.index()
	return p.funcsByPath[path]
}

func (p *Program) index() {
	if p.structsByPath != nil {
		return
	}
	p.structsByPath = make(map[string]*StructDef, len(p.Structs))
	for _, s := range p.Structs {
		p.structsByPath[s.Path] = s
	}
	p.funcsByPath = make(map[string]*Body, len(p.Functions))
	for _, f := range p.Functions {
		p.funcsByPath[f.DefPath] = f
	}
}

func pathEndsWith(path, seg string) bool {
	if path == seg {
		return true
	}
	n := len(path) - len(seg)
	return n > 2 && path[n:] == seg && path[n-2:n] == "::"
}
