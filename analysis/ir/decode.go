package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a Program document from r.
func Decode(r io.Reader) (*Program, error) {
	var p Program
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProgram reads a Program document from a file.
func LoadProgram(filename string) (*Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening program export: %w", err)
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

func (p *Program) validate() error {
	for _, f := range p.Functions {
		if f.DefPath == "" {
			return fmt.Errorf("function with empty def path")
		}
		if len(f.Locals) < f.ArgCount+1 {
			return fmt.Errorf("%s: %d locals for %d args", f.DefPath, len(f.Locals), f.ArgCount)
		}
		for i := range f.Blocks {
			for _, succ := range f.Blocks[i].Terminator.Successors() {
				if succ < 0 || int(succ) >= len(f.Blocks) {
					return fmt.Errorf("%s: block %d has out-of-range successor %d", f.DefPath, i, succ)
				}
			}
		}
	}
	return nil
}
