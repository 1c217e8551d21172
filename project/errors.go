package project

import "errors"

// Sentinel error kinds specific to the project
// orchestrator; Lex, Parse, Elaboration and Backend errors are
// produced and wrapped by the front ends and bubble up through
// compileContract unchanged.
var (
	// ErrMissingDependency is returned when a factory-dependency identifier
	// has no entry in identifier_paths, or a stack-asm data entry's content
	// hash has no matching path — fatal for the contract.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrMissingLibrary is returned when linkersymbol("file:name") refers to
	// an address not present in the project's library table —
	// fatal for the contract.
	ErrMissingLibrary = errors.New("missing library")
)
