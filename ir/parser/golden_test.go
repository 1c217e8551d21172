package parser_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/cfront/internal/filetest"
	"github.com/mna/cfront/ir/ast"
	"github.com/mna/cfront/ir/parser"
	"github.com/stretchr/testify/require"
)

var testUpdateParserTests = flag.Bool("test.update-parser-tests", false, "If set, replace expected parser test results with actual results.")

func TestParserGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".ir") {
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			require.NoError(t, err)

			obj, err := parser.ParseObject(fi.Name(), src)
			require.NoError(t, err)

			var buf bytes.Buffer
			printer := ast.Printer{Output: &buf}
			require.NoError(t, printer.Print(obj))

			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateParserTests)
		})
	}
}
