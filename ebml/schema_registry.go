package ebml

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

// builtinSchemas bundles the default schema set shipped with this
// module, resolved last in the lookup order below.
//
//go:embed schemas
var builtinSchemas embed.FS

const defaultBuiltinSchema = "schemas/matroska.xml"

// Registry resolves schema path strings to parsed *Schema values and
// caches the result, standing in for the source's process-wide mutable
// schema dictionary (see the design note on "Global mutable schema cache
// → explicit registry") as an object the caller owns and can discard.
type Registry struct {
	fsys          afero.Fs
	resourceRoots map[string]fs.FS

	mu    sync.Mutex
	cache *lru.Cache[string, *Schema]
}

// NewRegistry builds a Registry backed by the OS filesystem with an
// LRU cache holding up to size parsed schemata (size <= 0 defaults to
// 32).
func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = 32
	}
	cache, err := lru.New[string, *Schema](size)
	if err != nil {
		// size is always positive here, so New cannot fail; a non-nil
		// err would be a programmer error in the default above.
		panic(err)
	}
	return &Registry{
		fsys:          afero.NewOsFs(),
		resourceRoots: make(map[string]fs.FS),
		cache:         cache,
	}
}

// RegisterResourceRoot makes pkgName resolve to root for "{pkgName}"
// path entries, the Go analogue of Python's installed-package resource
// directories.
func (r *Registry) RegisterResourceRoot(pkgName string, root fs.FS) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resourceRoots[pkgName] = root
}

// Resolve loads and caches the schema named by path, searching in order:
//  1. path itself, if absolute.
//  2. path joined against each of searchDirs, in order.
//  3. path joined against each directory in $EBMLITE_SCHEMA_PATH
//     (split on filepath.ListSeparator).
//  4. the module's built-in schema directory, which holds the single
//     default schema schemas/matroska.xml. That schema is returned for
//     any path not found in steps 1-3; path is not looked up by name
//     in the built-in directory.
//
// A path of the form "{pkgName}/rest/of/path" resolves "rest/of/path"
// against the fs.FS registered under pkgName via RegisterResourceRoot,
// skipping steps 1-4 entirely.
func (r *Registry) Resolve(path string, searchDirs ...string) (*Schema, error) {
	if pkgName, rest, ok := parseResourceRef(path); ok {
		return r.resolveFromResourceRoot(pkgName, rest)
	}

	r.mu.Lock()
	if cached, ok := r.cache.Get(path); ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	candidates := r.candidatePaths(path, searchDirs)
	var lastErr error
	for _, candidate := range candidates {
		f, err := r.fsys.Open(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		schema, err := LoadSchema(f)
		closeErr := f.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
		r.store(path, schema)
		return schema, nil
	}

	if f, err := builtinSchemas.Open(defaultBuiltinSchema); err == nil {
		schema, loadErr := LoadSchema(f)
		_ = f.Close()
		if loadErr != nil {
			return nil, loadErr
		}
		r.store(path, schema)
		return schema, nil
	}

	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMalformed, path, lastErr)
}

func (r *Registry) store(path string, schema *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(path, schema)
}

func (r *Registry) candidatePaths(path string, searchDirs []string) []string {
	if filepath.IsAbs(path) {
		return []string{path}
	}

	var candidates []string
	for _, dir := range searchDirs {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	if envList := os.Getenv("EBMLITE_SCHEMA_PATH"); envList != "" {
		for _, dir := range strings.Split(envList, string(filepath.ListSeparator)) {
			if dir == "" {
				continue
			}
			candidates = append(candidates, filepath.Join(dir, path))
		}
	}
	return candidates
}

func parseResourceRef(path string) (pkgName, rest string, ok bool) {
	if !strings.HasPrefix(path, "{") {
		return "", "", false
	}
	end := strings.Index(path, "}")
	if end < 0 {
		return "", "", false
	}
	pkgName = path[1:end]
	rest = strings.TrimPrefix(path[end+1:], "/")
	return pkgName, rest, true
}

func (r *Registry) resolveFromResourceRoot(pkgName, rest string) (*Schema, error) {
	cacheKey := "{" + pkgName + "}/" + rest
	r.mu.Lock()
	if cached, ok := r.cache.Get(cacheKey); ok {
		r.mu.Unlock()
		return cached, nil
	}
	root, ok := r.resourceRoots[pkgName]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unregistered resource root %q", ErrSchemaMalformed, pkgName)
	}

	f, err := root.Open(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
	}
	defer f.Close()

	schema, err := LoadSchema(f)
	if err != nil {
		return nil, err
	}
	r.store(cacheKey, schema)
	return schema, nil
}
