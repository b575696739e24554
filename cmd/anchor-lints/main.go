package main

import (
	"fmt"
	"os"

	"github.com/otter-sec/anchor-lints-sub000/analysis"
	"github.com/otter-sec/anchor-lints-sub000/cmd/anchor-lints/lint"
	"github.com/otter-sec/anchor-lints-sub000/cmd/anchor-lints/show"
	"github.com/otter-sec/anchor-lints-sub000/cmd/anchor-lints/tools"
)

const usage = `anchor-lints: security lints for Anchor programs
Usage:
  anchor-lints [tool] [options] <IR export path(s)>
Tools:
  - lint: runs the lint suite on an IR export and reports findings
  - show: dumps the analyzer's view of one function, for debugging
Examples:
  Run the lints: anchor-lints lint -config lints.yaml export.json
  Inspect a handler: anchor-lints show -func my_program::withdraw export.json`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "lint":
		flags, err := lint.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := lint.Run(flags); err != nil {
			errExit(err)
		}
	case "show":
		flags, err := show.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := show.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
