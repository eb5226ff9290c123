package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/fsutil"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/schema"
)

// Loader is the HCL-specific implementation of program and settings loading.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadSettings reads optimizer settings from one HCL file, starting from the
// defaults for every key the file omits. An empty path yields the defaults.
func (l *Loader) LoadSettings(ctx context.Context, path string) (*config.Settings, error) {
	settings := config.Default()
	if path == "" {
		return settings, nil
	}

	root, err := l.decodeFile(path)
	if err != nil {
		return nil, err
	}
	if root.Settings != nil {
		applySettings(settings, root.Settings)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("Loaded settings.", "path", path,
		"tile_size_threshold", settings.TileSizeThreshold)
	return settings, nil
}

// LoadProgram reads every .hcl file under path (or path itself when it names
// a file), merges the program blocks, and translates them into the dataflow
// model. Exactly one program must be left unreferenced by nested nodes; that
// one is the root. Settings blocks encountered along the way merge over the
// defaults.
func (l *Loader) LoadProgram(ctx context.Context, path string) (*prog.Program, *config.Settings, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := l.findFiles(path)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no .hcl files found under %s", path)
	}
	logger.Debug("Discovered program files.", "count", len(files))

	settings := config.Default()
	blocks := make(map[string]*schema.Program)
	var order []string
	for _, file := range files {
		root, err := l.decodeFile(file)
		if err != nil {
			return nil, nil, err
		}
		if root.Settings != nil {
			applySettings(settings, root.Settings)
		}
		for _, pb := range root.Programs {
			if _, exists := blocks[pb.Name]; exists {
				return nil, nil, fmt.Errorf("program %q defined more than once", pb.Name)
			}
			blocks[pb.Name] = pb
			order = append(order, pb.Name)
		}
	}
	if len(blocks) == 0 {
		return nil, nil, fmt.Errorf("no program blocks found under %s", path)
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid settings under %s: %w", path, err)
	}

	rootName, err := findRoot(blocks, order)
	if err != nil {
		return nil, nil, err
	}

	tr := &translator{blocks: blocks, building: make(map[string]bool)}
	p, err := tr.program(rootName)
	if err != nil {
		return nil, nil, err
	}
	if err := prog.Validate(p); err != nil {
		return nil, nil, fmt.Errorf("program %s: %w", rootName, err)
	}
	logger.Debug("Program loaded.", "name", rootName, "programs", len(blocks))
	return p, settings, nil
}

func (l *Loader) decodeFile(path string) (*schema.Root, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var root schema.Root
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return &root, nil
}

func (l *Loader) findFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".hcl" {
			return nil, fmt.Errorf("%s is not an .hcl file", path)
		}
		return []string{path}, nil
	}
	return fsutil.FindFilesByExtension(path, ".hcl")
}

func applySettings(dst *config.Settings, src *schema.Settings) {
	if src.TileSizeThreshold != nil {
		dst.TileSizeThreshold = *src.TileSizeThreshold
	}
	if src.PreferPartialParallelism != nil {
		dst.PreferPartialParallelism = *src.PreferPartialParallelism
	}
	if src.VerboseProgress != nil {
		dst.VerboseProgress = *src.VerboseProgress
	}
}

// findRoot returns the single program no nested node references.
func findRoot(blocks map[string]*schema.Program, order []string) (string, error) {
	referenced := make(map[string]bool)
	for _, pb := range blocks {
		for _, rb := range pb.Regions {
			for _, nb := range rb.Nesteds {
				referenced[nb.Program] = true
			}
		}
	}
	var roots []string
	for _, name := range order {
		if !referenced[name] {
			roots = append(roots, name)
		}
	}
	switch len(roots) {
	case 1:
		return roots[0], nil
	case 0:
		return "", fmt.Errorf("no root program: every program block is referenced as nested")
	default:
		return "", fmt.Errorf("ambiguous root program: %v are all unreferenced", roots)
	}
}
