// Package show implements the front-end for dumping the analyzer's view of
// a function: its Anchor context and the provenance maps the lints query.
// It exists as a debugging aid for lint authors and IR export issues.
package show

import (
	"fmt"
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/cmd/anchor-lints/tools"
	"github.com/otter-sec/anchor-lints-sub000/internal/formatutil"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

// Usage for the show sub-command.
const Usage = `Show the analyzer's view of one function in an IR export.

Usage:
  anchor-lints show -func <path> export.json

Without -func, lists the functions in the export.

Examples:
% anchor-lints show export.json
% anchor-lints show -func my_program::instructions::withdraw export.json
`

// Flags represents the parsed flags for the show sub-tool.
type Flags struct {
	tools.CommonFlags
	funcPath string
}

// NewFlags returns parsed flags for show.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("show")
	funcPath := flags.FlagSet.String("func", "", "def path (or suffix) of the function to show")
	tools.SetUsage(flags.FlagSet, Usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command show with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		funcPath: *funcPath,
	}, nil
}

// Run shows either the function listing or one function's analyzer state.
func Run(flags Flags) error {
	if flags.FlagSet.NArg() != 1 {
		return fmt.Errorf("expected exactly one IR export file")
	}
	prog, err := ir.LoadProgram(flags.FlagSet.Arg(0))
	if err != nil {
		return fmt.Errorf("could not load IR export %s: %v", flags.FlagSet.Arg(0), err)
	}

	if flags.funcPath == "" {
		listFunctions(prog)
		return nil
	}

	body := findFunction(prog, flags.funcPath)
	if body == nil {
		return fmt.Errorf("no function matching %q in crate %s", flags.funcPath, prog.Crate)
	}
	showFunction(prog, body)
	return nil
}

// findFunction resolves a function by exact def path, then by suffix on a
// `::` boundary.
func findFunction(prog *ir.Program, path string) *ir.Body {
	if body := prog.Function(path); body != nil {
		return body
	}
	for _, f := range prog.Functions {
		if strings.HasSuffix(f.DefPath, "::"+path) {
			return f
		}
	}
	return nil
}

func listFunctions(prog *ir.Program) {
	fmt.Printf("crate %s: %d functions\n", formatutil.Bold(prog.Crate), len(prog.Functions))
	for _, f := range prog.Functions {
		extra := ""
		if f.TraitMethod {
			extra = " (trait method)"
		}
		fmt.Printf("  %s  %s%s\n", f.DefPath, formatutil.Faint(f.Span.String()), extra)
	}
}

func showFunction(prog *ir.Program, body *ir.Body) {
	src := source.NewMap(prog.Sources)
	a := mir.NewAnalyzer(prog, body, src)

	fmt.Printf("%s %s\n", formatutil.Bold(body.DefPath), formatutil.Faint(body.Span.String()))
	fmt.Printf("  %d args, %d locals, %d blocks\n", body.ArgCount, len(body.Locals), len(body.Blocks))

	if a.Context != nil {
		fmt.Printf("\ncontext `%s` (local _%d): %s\n", a.Context.Name, a.Context.ArgLocal, a.Context.Type)
		for _, acc := range a.Context.Accounts {
			line := fmt.Sprintf("  %s: %s", acc.Name, acc.Type)
			if len(acc.Constraints.Raw) > 0 {
				line += "  " + formatutil.Faint("#[account("+strings.Join(acc.Constraints.Raw, ", ")+")]")
			}
			fmt.Println(line)
		}
	} else {
		fmt.Println("\nno anchor context")
	}

	fmt.Println("\nassignments:")
	for _, l := range funcutil.SortedKeys(a.Assignment) {
		as := a.Assignment[l]
		switch as.Kind {
		case mir.AssignFromPlace, mir.AssignRefTo:
			fmt.Printf("  _%d = %s %s\n", l, as.Kind, as.Place)
		default:
			fmt.Printf("  _%d = %s\n", l, as.Kind)
		}
	}

	fmt.Println("\nflows (transitive):")
	for _, l := range funcutil.SortedKeys(a.TransitiveReverse) {
		dests := a.TransitiveReverse[l]
		elems := make([]string, len(dests))
		for i, d := range dests {
			elems[i] = fmt.Sprintf("_%d", d)
		}
		fmt.Printf("  _%d -> %s\n", l, strings.Join(elems, " "))
	}

	if len(a.MethodReceiver) > 0 {
		fmt.Println("\nmethod receivers:")
		for _, l := range funcutil.SortedKeys(a.MethodReceiver) {
			fmt.Printf("  _%d <- _%d\n", l, a.MethodReceiver[l])
		}
	}
}
