// Package analysis wires the individual lints into a single run over an IR
// export.
package analysis

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/config"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/accountreload"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/arbitrarycpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/atainit"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/cpinoresult"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/dupmutable"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/fieldinit"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/lamportdos"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/missingowner"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/missingsigner"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/overconstrained"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/pdaoverlap"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/pythprice"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// A Lint is one registered analysis pass.
type Lint struct {
	// Name is the lint's stable identifier, used in reports and in config
	// enable/disable lists.
	Name string
	// Run walks the program and records findings on the reporter.
	Run func(*ir.Program, *source.Map, *diag.Reporter)
}

// Lints returns all registered lints, in a fixed order.
func Lints() []Lint {
	return []Lint{
		{arbitrarycpi.Name, arbitrarycpi.Run},
		{accountreload.Name, accountreload.Run},
		{missingsigner.Name, missingsigner.Run},
		{missingowner.Name, missingowner.Run},
		{dupmutable.Name, dupmutable.Run},
		{fieldinit.Name, fieldinit.Run},
		{lamportdos.Name, lamportdos.Run},
		{overconstrained.Name, overconstrained.Run},
		{pythprice.Name, pythprice.Run},
		{pdaoverlap.Name, pdaoverlap.Run},
		{atainit.Name, atainit.Run},
		{cpinoresult.Name, cpinoresult.Run},
	}
}

// RunLints runs every lint the config enables over the program and returns
// the surviving diagnostics, sorted and capped per the config.
func RunLints(prog *ir.Program, cfg *config.Config, logger *config.LogGroup) []diag.Diagnostic {
	src := source.NewMap(prog.Sources)
	rep := &diag.Reporter{}

	for _, lint := range Lints() {
		if !cfg.LintEnabled(lint.Name) {
			logger.Debugf("lint %s disabled", lint.Name)
			continue
		}
		logger.Debugf("running %s", lint.Name)
		lint.Run(prog, src, rep)
	}

	var out []diag.Diagnostic
	for _, d := range rep.Diagnostics() {
		if cfg.IsTestPath(d.Span.File) {
			continue
		}
		if cfg.IsSuppressed(d.Lint, d.Span.File, d.Message) {
			logger.Debugf("suppressed %s at %s", d.Lint, d.Span)
			continue
		}
		if cfg.ExceedsMaxAlarms(len(out)) {
			logger.Warnf("alarm limit reached, dropping the remaining diagnostics")
			break
		}
		out = append(out, d)
	}
	return out
}
