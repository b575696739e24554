// Package lamportdos flags CPI calls made after a direct lamport mutation
// when the mutated account is missing from the CPI's account list. The
// runtime balance check fails for such calls, turning the handler into a
// denial of service.
package lamportdos

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "direct_lamport_cpi_dos"

type lamportMutation struct {
	span  ir.Span
	block ir.BlockID
}

type cpiCall struct {
	block    ir.BlockID
	span     ir.Span
	accounts map[string]bool
}

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep)
	}
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	mutations := make(map[string]lamportMutation)
	var cpiCalls []cpiCall

	for bi := range body.Blocks {
		bb := ir.BlockID(bi)
		block := &body.Blocks[bi]

		for si := range block.Statements {
			stmt := &block.Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil {
				continue
			}
			if name, ok := lamportMutationAccount(a, src, stmt); ok {
				mutations[name] = lamportMutation{span: stmt.Span, block: bb}
			}
		}

		term := &block.Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		if !a.TakesCpiContext(term.Args) || cpi.IsWithRemainingAccountsFn(&term.Func) {
			continue
		}
		cpiCalls = append(cpiCalls, cpiCall{
			block:    bb,
			span:     term.Span,
			accounts: cpiAccountSet(a, term.Args, bb),
		})
	}

	for _, name := range funcutil.SortedKeys(mutations) {
		mut := mutations[name]
		for _, call := range cpiCalls {
			if !a.Reachable(mut.block, call.block) {
				continue
			}
			if call.accounts[name] {
				continue
			}
			rep.Report(diag.Diagnostic{
				Lint:     Name,
				Span:     call.span,
				Message:  "account `" + name + "` had its lamports directly mutated but is not included in this CPI call",
				Note:     "lamport mutation is here",
				NoteSpan: mut.span,
			})
		}
	}
}

// lamportMutationAccount recognizes `<acct>.lamports.borrow_mut()` receivers
// behind an assignment.
func lamportMutationAccount(a *mir.Analyzer, src *source.Map, stmt *ir.Statement) (string, bool) {
	if local, ok := stmt.Place.AsLocal(); ok {
		if name, ok := lamportSnippetAccount(a, src, local); ok {
			return name, true
		}
	}
	if stmt.Rvalue.Kind == ir.RvRef && stmt.Rvalue.Place != nil {
		if local, ok := stmt.Rvalue.Place.AsLocal(); ok {
			if recv, found := a.MethodReceiver[local]; found {
				refs := a.AccountFromLocal(recv, true)
				if len(refs) > 0 && isLamportSnippet(localSnippet(a, src, local)) {
					return refs[0].Name, true
				}
			}
		}
	}
	return "", false
}

func localSnippet(a *mir.Analyzer, src *source.Map, local ir.Local) string {
	decl := a.Body.LocalDecl(local)
	if decl == nil {
		return ""
	}
	return src.Snippet(decl.Span)
}

func isLamportSnippet(snippet string) bool {
	return strings.Contains(snippet, "lamports") && strings.Contains(snippet, "borrow_mut")
}

func lamportSnippetAccount(a *mir.Analyzer, src *source.Map, local ir.Local) (string, bool) {
	snippet := localSnippet(a, src, local)
	if !isLamportSnippet(snippet) {
		return "", false
	}
	// ctx.accounts.<name>.lamports.borrow_mut()
	_, rest, found := strings.Cut(snippet, ".accounts.")
	if !found {
		return "", false
	}
	name, _, found := strings.Cut(rest, ".")
	if !found || name == "" {
		return "", false
	}
	return name, true
}

// cpiAccountSet resolves the account names a CPI's context carries,
// including any appended through with_remaining_accounts.
func cpiAccountSet(a *mir.Analyzer, args []ir.Arg, cpiBlock ir.BlockID) map[string]bool {
	accounts := make(map[string]bool)
	ctxLocal, ok := argLocal(args, 0)
	if !ok {
		return accounts
	}
	collectFromContext(a, cpiBlock, ctxLocal, accounts)
	return accounts
}

func collectFromContext(a *mir.Analyzer, cpiBlock ir.BlockID, ctxLocal ir.Local, accounts map[string]bool) {
	for bi := range a.Body.Blocks {
		bb := ir.BlockID(bi)
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind == ir.TermCall && anchor.IsCpiContext(term.Func.Return) {
			accountsLocal, haveAccounts := argLocal(term.Args, 1)
			dest, haveDest := term.Destination.AsLocal()
			if haveAccounts && haveDest && a.Related(dest, ctxLocal) {
				if cpi.IsWithRemainingAccountsFn(&term.Func) {
					if innerCtx, ok := argLocal(term.Args, 0); ok {
						collectFromContext(a, bb, innerCtx, accounts)
					}
					refs := a.CollectAccountsFromAccountInfos(term.Args[1], true)
					if len(refs) == 0 {
						refs = a.VecElements(accountsLocal, nil, true)
					}
					for _, ref := range refs {
						accounts[ref.Name] = true
					}
				} else {
					collectFromAccountsStruct(a, bb, accountsLocal, accounts)
				}
				return
			}
		}
		if bb == cpiBlock {
			return
		}
	}
}

func collectFromAccountsStruct(a *mir.Analyzer, limit ir.BlockID, accountsLocal ir.Local, accounts map[string]bool) {
	for bi := range a.Body.Blocks {
		bb := ir.BlockID(bi)
		for si := range a.Body.Blocks[bi].Statements {
			stmt := &a.Body.Blocks[bi].Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil ||
				stmt.Rvalue.Kind != ir.RvAggregate || stmt.Rvalue.Adt == "" {
				continue
			}
			structLocal, ok := stmt.Place.AsLocal()
			if !ok || !a.Related(structLocal, accountsLocal) {
				continue
			}
			for _, op := range stmt.Rvalue.Operands {
				local, ok := op.AsLocal()
				if !ok {
					continue
				}
				for _, ref := range a.AccountFromLocal(local, true) {
					accounts[ref.Name] = true
				}
			}
			return
		}
		if bb == limit {
			return
		}
	}
}

func argLocal(args []ir.Arg, i int) (ir.Local, bool) {
	if i >= len(args) {
		return 0, false
	}
	return args[i].Operand.AsLocal()
}
