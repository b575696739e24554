package atainit_test

import (
	"path/filepath"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis"
	"github.com/otter-sec/anchor-lints-sub000/analysis/lints/atainit"
	"github.com/otter-sec/anchor-lints-sub000/internal/analysistest"
)

func TestAtaInitFixture(t *testing.T) {
	lint := analysis.Lint{Name: atainit.Name, Run: atainit.Run}
	analysistest.CheckLint(t, filepath.Join("testdata", "ata_init.txtar"), lint, atainit.Name)
}
