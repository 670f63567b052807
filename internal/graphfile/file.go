// Package graphfile reads frame graph descriptions from YAML and declares
// them on a framegraph.Builder.
//
// A description lists resources and passes by name:
//
//	label: deferred
//	resources:
//	  - {name: gbuffer, kind: texture, width: 1920, height: 1080}
//	  - {name: swapchain, kind: texture, import: true, initial_state: present}
//	passes:
//	  - {name: geometry, kind: raster, color: [gbuffer]}
//	  - {name: lighting, kind: raster, sampled: [gbuffer], color: [swapchain]}
//	present: swapchain
//
// Passes carry no shader work of their own. Build records a representative
// command for each surviving pass (a copy, a dispatch or a draw), which is
// enough to inspect the schedule on the recording device.
package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/framegraph/rhi"
)

// ErrInvalidFile is returned for descriptions that fail validation.
var ErrInvalidFile = errors.New("graphfile: invalid graph description")

// File is a decoded graph description.
type File struct {
	Label     string     `yaml:"label"`
	Resources []Resource `yaml:"resources"`
	Passes    []Pass     `yaml:"passes"`

	// ForceUsed names resources kept alive without a consumer.
	ForceUsed []string `yaml:"force_used"`

	// Present names an imported texture presented after execution.
	Present string `yaml:"present"`
}

// Resource describes a buffer or texture.
type Resource struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // buffer or texture

	Size uint64 `yaml:"size"` // buffers

	Width  uint32 `yaml:"width"` // textures
	Height uint32 `yaml:"height"`
	Format string `yaml:"format"`

	// Import creates the physical resource up front and imports it.
	Import       bool   `yaml:"import"`
	InitialState string `yaml:"initial_state"`
	FinalState   string `yaml:"final_state"`
}

// Pass describes one pass, or a sync point when Kind is "sync".
type Pass struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // copy, compute, raster or sync

	// Copy passes.
	Srcs []string `yaml:"srcs"`
	Dsts []string `yaml:"dsts"`

	// Bindings of compute and raster passes, bound in this order.
	Uniform         []string `yaml:"uniform"`
	Storage         []string `yaml:"storage"`
	Sampled         []string `yaml:"sampled"`
	StorageTextures []string `yaml:"storage_textures"`

	// Compute passes.
	Async      bool     `yaml:"async"`
	Shader     string   `yaml:"shader"` // optional WGSL
	Workgroups []uint32 `yaml:"workgroups"`

	// Raster passes.
	Color    []string `yaml:"color"`
	Depth    string   `yaml:"depth"`
	Vertices uint32   `yaml:"vertices"`
}

const (
	kindBuffer  = "buffer"
	kindTexture = "texture"

	passCopy    = "copy"
	passCompute = "compute"
	passRaster  = "raster"
	passSync    = "sync"
)

// formats maps format names accepted in descriptions.
var formats = map[string]gputypes.TextureFormat{
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

// Parse decodes a description. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("graphfile: decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the description at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// CollectFiles returns path if it is a YAML file, or the YAML files directly
// inside it if it is a directory, sorted.
func CollectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	if !info.IsDir() {
		if !isYAML(path) {
			return nil, fmt.Errorf("graphfile: %q must have a .yaml or .yml extension", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isYAML(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks names, kinds and references.
func (f *File) Validate() error {
	kinds := make(map[string]string, len(f.Resources))
	imported := make(map[string]bool)
	for i := range f.Resources {
		r := &f.Resources[i]
		if r.Name == "" {
			return invalid("resource %d has no name", i)
		}
		if _, dup := kinds[r.Name]; dup {
			return invalid("duplicate resource %q", r.Name)
		}
		switch r.Kind {
		case kindBuffer:
			if r.Size == 0 {
				return invalid("buffer %q has zero size", r.Name)
			}
		case kindTexture:
			if r.Width == 0 || r.Height == 0 {
				return invalid("texture %q has zero extent", r.Name)
			}
			if _, err := ParseFormat(r.Format); err != nil {
				return invalid("texture %q: %v", r.Name, err)
			}
		default:
			return invalid("resource %q: unknown kind %q", r.Name, r.Kind)
		}
		for _, s := range []string{r.InitialState, r.FinalState} {
			if _, err := ParseState(s); err != nil {
				return invalid("resource %q: %v", r.Name, err)
			}
		}
		if !r.Import && (r.InitialState != "" || r.FinalState != "") {
			return invalid("resource %q: states apply to imported resources only", r.Name)
		}
		kinds[r.Name] = r.Kind
		imported[r.Name] = r.Import
	}

	names := make(map[string]struct{}, len(f.Passes))
	for i := range f.Passes {
		p := &f.Passes[i]
		if p.Kind == passSync {
			continue
		}
		if p.Name == "" {
			return invalid("pass %d has no name", i)
		}
		if _, dup := names[p.Name]; dup {
			return invalid("duplicate pass %q", p.Name)
		}
		names[p.Name] = struct{}{}

		check := func(field, want string, refs ...string) error {
			for _, ref := range refs {
				if ref == "" {
					continue
				}
				kind, ok := kinds[ref]
				if !ok {
					return invalid("pass %q %s: unknown resource %q", p.Name, field, ref)
				}
				if want != "" && kind != want {
					return invalid("pass %q %s: %q is a %s", p.Name, field, ref, kind)
				}
			}
			return nil
		}

		var err error
		switch p.Kind {
		case passCopy:
			err = errors.Join(check("srcs", "", p.Srcs...), check("dsts", "", p.Dsts...))
			if err == nil {
				err = p.validateCopies(kinds)
			}
		case passCompute:
			if len(p.Workgroups) > 3 {
				err = invalid("pass %q: workgroups has %d dimensions", p.Name, len(p.Workgroups))
			}
			err = errors.Join(err, p.checkBindings(check))
		case passRaster:
			if len(p.Color) == 0 && p.Depth == "" {
				err = invalid("raster pass %q has no attachments", p.Name)
			}
			err = errors.Join(err,
				check("color", kindTexture, p.Color...),
				check("depth", kindTexture, p.Depth),
				p.checkBindings(check))
		default:
			err = invalid("pass %q: unknown kind %q", p.Name, p.Kind)
		}
		if err != nil {
			return err
		}
	}

	if err := f.checkNames("force_used", kinds, f.ForceUsed...); err != nil {
		return err
	}
	if f.Present != "" {
		if kinds[f.Present] != kindTexture || !imported[f.Present] {
			return invalid("present %q is not an imported texture", f.Present)
		}
	}
	return nil
}

func (p *Pass) checkBindings(check func(field, want string, refs ...string) error) error {
	return errors.Join(
		check("uniform", kindBuffer, p.Uniform...),
		check("storage", kindBuffer, p.Storage...),
		check("sampled", kindTexture, p.Sampled...),
		check("storage_textures", kindTexture, p.StorageTextures...),
	)
}

// validateCopies rejects texture to texture copies, which the device
// interface does not offer.
func (p *Pass) validateCopies(kinds map[string]string) error {
	if len(p.Srcs) == 0 {
		return nil
	}
	for i, dst := range p.Dsts {
		src := p.Srcs[min(i, len(p.Srcs)-1)]
		if kinds[src] == kindTexture && kinds[dst] == kindTexture {
			return invalid("pass %q: cannot copy texture %q to texture %q", p.Name, src, dst)
		}
	}
	return nil
}

func (f *File) checkNames(field string, kinds map[string]string, refs ...string) error {
	for _, ref := range refs {
		if _, ok := kinds[ref]; !ok {
			return invalid("%s: unknown resource %q", field, ref)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFile, fmt.Sprintf(format, args...))
}

// ParseFormat returns the texture format for name. An empty name means
// rgba8unorm.
func ParseFormat(name string) (gputypes.TextureFormat, error) {
	if name == "" {
		return gputypes.TextureFormatRGBA8Unorm, nil
	}
	f, ok := formats[strings.ToLower(name)]
	if !ok {
		return gputypes.TextureFormatUndefined, fmt.Errorf("unknown format %q", name)
	}
	return f, nil
}

// ParseState returns the resource state for a name such as "present" or
// "copy-dst". Matching ignores case, dashes and underscores. An empty name
// means StateUndefined.
func ParseState(name string) (rhi.ResourceState, error) {
	if name == "" {
		return rhi.StateUndefined, nil
	}
	norm := strings.NewReplacer("-", "", "_", "").Replace(name)
	for s := rhi.StateUndefined; s <= rhi.StatePresent; s++ {
		if strings.EqualFold(norm, s.String()) {
			return s, nil
		}
	}
	return rhi.StateUndefined, fmt.Errorf("unknown state %q", name)
}
