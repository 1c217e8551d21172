package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputBaseName derives the "<path-with-slashes-as-dots>.<name>" stem
// used for filesystem outputs, from a fully-qualified
// contract path of the form "dir/file.sol:Name".
func OutputBaseName(path string) string {
	srcPath, name, ok := strings.Cut(path, ":")
	if !ok {
		name = ""
		srcPath = path
	}
	dotted := strings.ReplaceAll(srcPath, "/", ".")
	if name == "" {
		return dotted
	}
	return dotted + "." + name
}

// WriteOutputs writes each build's ".zasm" (assembly text) and ".zbin"
// (binary) files into dir. Existing files are only
// overwritten when overwrite is true.
func WriteOutputs(dir string, builds map[string]*ContractBuild, overwrite bool) error {
	for path, b := range builds {
		base := OutputBaseName(path)
		if err := writeOutput(filepath.Join(dir, base+".zasm"), []byte(b.Build.AssemblyText), overwrite); err != nil {
			return err
		}
		if err := writeOutput(filepath.Join(dir, base+".zbin"), b.Build.Bytecode, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("project: %s: already exists (overwrite not permitted)", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("project: %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("project: %s: %w", path, err)
	}
	return nil
}
