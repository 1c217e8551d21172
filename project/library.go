package project

import (
	"fmt"
	"strings"
)

// LibraryTable holds library addresses given on the command line as
// "file:name=0x<40-hex>", parsed into file -> name -> address
// (hex, without the "0x" prefix).
type LibraryTable map[string]map[string]string

// ParseLibraries parses a batch of "file:name=0x<40-hex>" entries into a
// LibraryTable.
func ParseLibraries(entries []string) (LibraryTable, error) {
	t := LibraryTable{}
	for _, e := range entries {
		fileName, addr, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("library %q: expected file:name=address", e)
		}
		file, name, ok := strings.Cut(fileName, ":")
		if !ok {
			return nil, fmt.Errorf("library %q: expected file:name=address", e)
		}
		addr = strings.TrimPrefix(addr, "0x")
		if len(addr) != 40 {
			return nil, fmt.Errorf("library %q: address must be 20 bytes (40 hex digits), got %d", e, len(addr))
		}
		for _, c := range addr {
			if !isHexDigit(c) {
				return nil, fmt.Errorf("library %q: address contains non-hex digit %q", e, c)
			}
		}
		if t[file] == nil {
			t[file] = map[string]string{}
		}
		t[file][name] = strings.ToLower(addr)
	}
	return t, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Resolve implements linkersymbol("file:name"): it returns the
// stored hex address (without "0x"), or ErrMissingLibrary if the file or
// name is unknown.
func (t LibraryTable) Resolve(ref string) (string, error) {
	file, name, ok := strings.Cut(ref, ":")
	if !ok {
		return "", fmt.Errorf("linkersymbol %q: %w", ref, ErrMissingLibrary)
	}
	names, ok := t[file]
	if !ok {
		return "", fmt.Errorf("linkersymbol %q: %w", ref, ErrMissingLibrary)
	}
	addr, ok := names[name]
	if !ok {
		return "", fmt.Errorf("linkersymbol %q: %w", ref, ErrMissingLibrary)
	}
	return addr, nil
}
