package project

import (
	"context"
	"fmt"

	"github.com/mna/cfront/asm/block"
	"github.com/mna/cfront/asm/elaborate"
	asmlower "github.com/mna/cfront/asm/lower"
	"github.com/mna/cfront/asm/model"
	"github.com/mna/cfront/backend"
	irlower "github.com/mna/cfront/ir/lower"
)

// compileContract lowers c into a fresh backend context, builds it, and
// resolves its factory-dependency hashes.
func (p *Project) compileContract(ctx context.Context, path string, c *Contract) (*ContractBuild, error) {
	bctx := p.NewBackend(c.Identifier)

	// Drain the factory-dependency identifiers before lowering: a copy
	// insulates the resolution pass below from the
	// Contract value, which no other thread touches once this one has
	// taken it out of Source.
	deps := append([]string(nil), c.FactoryDependencies...)

	var dataPaths map[string]string
	var dataDeps []string
	switch c.Kind {
	case KindStructuredIR:
		if err := irlower.Object(bctx, c.IR, p.libraries.Resolve); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case KindStackAsm:
		dp, dd, err := p.lowerAssembly(bctx, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		dataPaths, dataDeps = dp, dd
	default:
		return nil, fmt.Errorf("%s: unknown source kind %d", path, c.Kind)
	}

	built, err := bctx.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Factory dependencies come from two sources: the identifiers the
	// front end declared, and the paths the data-map dependency pass
	// resolved from inline assemblies.
	factoryDeps := make(map[string]string, len(deps)+len(dataDeps))
	depPaths := make([]string, 0, len(deps)+len(dataDeps))
	for _, id := range deps {
		depPath, ok := p.identifierPaths.Get(id)
		if !ok {
			return nil, fmt.Errorf("%s: factory dependency %q: %w", path, id, ErrMissingDependency)
		}
		depPaths = append(depPaths, depPath)
	}
	depPaths = append(depPaths, dataDeps...)
	for _, depPath := range depPaths {
		if depPath == path {
			continue
		}
		depBuild, err := p.Compile(ctx, depPath)
		if err != nil {
			return nil, fmt.Errorf("%s: factory dependency %q: %w", path, depPath, err)
		}
		factoryDeps[depBuild.Build.Hash] = depBuild.Path
	}

	return &ContractBuild{
		Path:       path,
		Identifier: c.Identifier,
		Build: BuildResult{
			Bytecode:            built.Bytecode,
			AssemblyText:        built.AssemblyText,
			Hash:                built.Hash,
			FactoryDependencies: factoryDeps,
			DataPaths:           dataPaths,
		},
	}, nil
}

// lowerAssembly runs the dependency pass over both of c.Asm's data maps
// (the deploy listing's, and the runtime listing's nested under key "0"),
// then lowers each code section against its own index -> path table. The
// merged table and the resolved dependency paths are returned for the
// caller to record on the build.
func (p *Project) lowerAssembly(bctx backend.Context, c *Contract) (map[string]string, []string, error) {
	deployPaths, runtimePaths, depPaths, err := p.resolveDataPaths(c.Asm)
	if err != nil {
		return nil, nil, err
	}

	res := &asmlower.Resolver{
		DataPaths: deployPaths,
		Library:   p.libraries.Resolve,
	}
	if err := p.lowerCode(bctx, backend.Deploy, "deploy", c.Asm.Code, res); err != nil {
		return nil, nil, fmt.Errorf("deploy: %w", err)
	}
	if rt, ok := c.Asm.Runtime(); ok {
		res := &asmlower.Resolver{
			DataPaths: runtimePaths,
			Library:   p.libraries.Resolve,
		}
		if err := p.lowerCode(bctx, backend.Runtime, "runtime", rt.Code, res); err != nil {
			return nil, nil, fmt.Errorf("runtime: %w", err)
		}
	}

	merged := make(map[string]string, len(deployPaths)+len(runtimePaths))
	for k, v := range deployPaths {
		merged[k] = v
	}
	for k, v := range runtimePaths {
		merged[k] = v
	}
	return merged, depPaths, nil
}

// lowerCode runs the block builder, symbolic elaborator and stack-asm
// lowering in sequence over one code type's instruction stream.
func (p *Project) lowerCode(bctx backend.Context, kind backend.CodeKind, name string, code []model.Instruction, res *asmlower.Resolver) error {
	built, err := block.Build(code)
	if err != nil {
		return err
	}
	fn, err := elaborate.Elaborate(built)
	if err != nil {
		return err
	}
	return asmlower.Function(bctx, kind, name, fn, res)
}
