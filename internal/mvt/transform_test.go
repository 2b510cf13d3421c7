package mvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// TestTransform_LayerDrop mirrors scenario S3: three layers, keep two,
// order preserved, modified=true.
func TestTransform_LayerDrop(t *testing.T) {
	tile := &Tile{Layers: []Layer{
		{Name: "buildings"},
		{Name: "streets", Keys: []string{"kind"}, Values: []Value{{Kind: ValueString, String: "primary"}}},
		{Name: "water_polygons"},
	}}

	out, modified := Transform(tile, keepSet("streets", "water_polygons"))
	require.True(t, modified)
	require.Len(t, out.Layers, 2)
	assert.Equal(t, "streets", out.Layers[0].Name)
	assert.Equal(t, "water_polygons", out.Layers[1].Name)
}

// TestTransform_PassThrough mirrors scenario S2: a single kept layer with
// no streets filtering applicable reports modified=false.
func TestTransform_PassThrough(t *testing.T) {
	tile := &Tile{Layers: []Layer{
		{
			Name:     "land",
			Features: []Feature{{HasID: true, ID: 1}, {HasID: true, ID: 2}},
		},
	}}

	out, modified := Transform(tile, keepSet("land"))
	assert.False(t, modified)
	require.Len(t, out.Layers, 1)
	assert.Len(t, out.Layers[0].Features, 2)
}

// TestTransform_StreetFilter mirrors scenario S4: three features with
// kind primary/motorway/footway, only primary survives.
func TestTransform_StreetFilter(t *testing.T) {
	layer := Layer{
		Name: "streets",
		Keys: []string{"kind"},
		Values: []Value{
			{Kind: ValueString, String: "primary"},
			{Kind: ValueString, String: "motorway"},
			{Kind: ValueString, String: "footway"},
		},
		Features: []Feature{
			{HasID: true, ID: 1, Tags: []uint32{0, 0}},
			{HasID: true, ID: 2, Tags: []uint32{0, 1}},
			{HasID: true, ID: 3, Tags: []uint32{0, 2}},
		},
	}
	tile := &Tile{Layers: []Layer{layer}}

	out, modified := Transform(tile, keepSet("streets"))
	require.True(t, modified)
	require.Len(t, out.Layers, 1)
	require.Len(t, out.Layers[0].Features, 1)
	assert.Equal(t, uint64(1), out.Layers[0].Features[0].ID)

	// keys/values tables are left intact even though two values are
	// now unreferenced.
	assert.Len(t, out.Layers[0].Keys, 1)
	assert.Len(t, out.Layers[0].Values, 3)
}

func TestTransform_StreetFilter_MalformedTagsKept(t *testing.T) {
	layer := Layer{
		Name:     "streets",
		Keys:     []string{"kind"},
		Values:   []Value{{Kind: ValueString, String: "primary"}},
		Features: []Feature{{HasID: true, ID: 1, Tags: []uint32{0}}},
	}
	tile := &Tile{Layers: []Layer{layer}}

	out, modified := Transform(tile, keepSet("streets"))
	assert.False(t, modified)
	require.Len(t, out.Layers[0].Features, 1)
}

func TestTransform_StreetFilter_OutOfRangeIndexKept(t *testing.T) {
	layer := Layer{
		Name:     "streets",
		Keys:     []string{"kind"},
		Values:   []Value{{Kind: ValueString, String: "primary"}},
		Features: []Feature{{HasID: true, ID: 1, Tags: []uint32{0, 7}}},
	}
	tile := &Tile{Layers: []Layer{layer}}

	out, _ := Transform(tile, keepSet("streets"))
	require.Len(t, out.Layers[0].Features, 1)
}

func TestTransform_NonStreetLayerUnfiltered(t *testing.T) {
	tile := &Tile{Layers: []Layer{
		{
			Name: "pois",
			Keys: []string{"kind"},
			Values: []Value{
				{Kind: ValueString, String: "not-in-whitelist-but-irrelevant"},
			},
			Features: []Feature{{HasID: true, ID: 1, Tags: []uint32{0, 0}}},
		},
	}}

	out, modified := Transform(tile, keepSet("pois"))
	assert.False(t, modified)
	assert.Len(t, out.Layers[0].Features, 1)
}

func TestDefaultKeepSet_ExcludesNotKept(t *testing.T) {
	keep := DefaultKeepSet()
	for name := range DefaultNotKept {
		_, present := keep[name]
		assert.False(t, present, "expected %s excluded from default keep set", name)
	}
	_, ok := keep["streets"]
	assert.True(t, ok, "expected streets in default keep set")
}
