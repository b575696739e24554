// Package lint implements the front-end for running the lint suite over an
// IR export.
package lint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/otter-sec/anchor-lints-sub000/analysis"
	"github.com/otter-sec/anchor-lints-sub000/analysis/config"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/cmd/anchor-lints/tools"
	"github.com/otter-sec/anchor-lints-sub000/internal/formatutil"
)

// Usage for the lint sub-command.
const Usage = `Run the lint suite on an Anchor program's IR export.

Usage:
  anchor-lints lint [options] export.json...

Use the -help flag to display the options.

Examples:
% anchor-lints lint -config lints.yaml target/ir/program.json
`

// Flags represents the parsed flags for the lint sub-tool.
type Flags struct {
	tools.CommonFlags
	outputJson bool
}

// NewFlags returns parsed flags for lint.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("lint")
	outputJson := flags.FlagSet.Bool("json", false, "output results as JSON")
	tools.SetUsage(flags.FlagSet, Usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command lint with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		outputJson: *outputJson,
	}, nil
}

// Run runs the lint suite on the IR exports named by the remaining args.
func Run(flags Flags) error {
	if flags.FlagSet.NArg() == 0 {
		return fmt.Errorf("expected at least one IR export file")
	}

	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	// Override config parameters with command-line parameters
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.outputJson {
		cfg.ReportFormat = "json"
	}
	logger := config.NewLogGroup(cfg)

	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading IR exports")+"\n")

	start := time.Now()
	var diags []diag.Diagnostic
	for _, filename := range flags.FlagSet.Args() {
		prog, err := ir.LoadProgram(filename)
		if err != nil {
			return fmt.Errorf("could not load IR export %s: %v", filename, err)
		}
		logger.Infof("Linting crate %s (%d functions)", prog.Crate, len(prog.Functions))
		diags = append(diags, analysis.RunLints(prog, cfg, logger)...)
	}
	logger.Debugf("Analysis took %3.4f s", time.Since(start).Seconds())

	if cfg.ReportFormat == "json" {
		buf, err := json.Marshal(diags)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostics: %v", err)
		}
		fmt.Println(string(buf))
	} else {
		diag.PrintDiagnostics(os.Stdout, diags)
		if len(diags) == 0 {
			fmt.Println(formatutil.Green("No findings ✓"))
		} else {
			fmt.Println(formatutil.Yellow(fmt.Sprintf("%d finding(s)", len(diags))))
		}
	}

	return nil
}
