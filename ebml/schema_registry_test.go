package ebml

import (
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesBuiltinSchemaOnMiss(t *testing.T) {
	reg := NewRegistry(0)
	reg.fsys = afero.NewMemMapFs() // nothing on disk, falls through to embedded default

	schema, err := reg.Resolve("missing/schema.xml")
	require.NoError(t, err)
	_, ok := schema.ByName("Segment")
	assert.True(t, ok, "builtin matroska schema declares Segment")
}

func TestRegistryResolvesFromExplicitFs(t *testing.T) {
	reg := NewRegistry(0)
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/schemas/custom.xml", []byte(legacySchemaXML), 0o644))
	reg.fsys = memFs

	schema, err := reg.Resolve("/schemas/custom.xml")
	require.NoError(t, err)
	_, ok := schema.ByName("Segment")
	assert.True(t, ok)
}

func TestRegistryCachesResolvedSchema(t *testing.T) {
	reg := NewRegistry(0)
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/schemas/custom.xml", []byte(legacySchemaXML), 0o644))
	reg.fsys = memFs

	first, err := reg.Resolve("/schemas/custom.xml")
	require.NoError(t, err)

	// Remove the backing file; a cache hit should not need it again.
	require.NoError(t, memFs.Remove("/schemas/custom.xml"))

	second, err := reg.Resolve("/schemas/custom.xml")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryResourceRoot(t *testing.T) {
	reg := NewRegistry(0)
	root := fstest.MapFS{
		"schemas/custom.xml": {Data: []byte(legacySchemaXML)},
	}
	reg.RegisterResourceRoot("mypkg", root)

	schema, err := reg.Resolve("{mypkg}/schemas/custom.xml")
	require.NoError(t, err)
	_, ok := schema.ByName("Segment")
	assert.True(t, ok)
}

func TestRegistryResourceRootUnregistered(t *testing.T) {
	reg := NewRegistry(0)
	_, err := reg.Resolve("{nope}/schemas/custom.xml")
	require.ErrorIs(t, err, ErrSchemaMalformed)
}
