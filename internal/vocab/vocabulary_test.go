package vocab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabulary_AddIsSetUnion(t *testing.T) {
	// Given: an empty vocabulary
	v := New()

	// When: adding overlapping values
	n1 := v.Add("coverage_type", "life", "dental", "life")
	n2 := v.Add("coverage_type", " life ", "", "vision")

	// Then: duplicates and blanks are ignored
	assert.Equal(t, 2, n1)
	assert.Equal(t, 1, n2)
	assert.Equal(t, []string{"dental", "life", "vision"}, v.Values("coverage_type"))
	assert.Equal(t, 3, v.Len())
}

func TestVocabulary_MergeIsMonotonicAndIdempotent(t *testing.T) {
	// Given: a vocabulary and a batch of values
	v := FromMap(map[string][]string{"parties": {"insurer"}})
	batch := map[string][]string{"parties": {"insurer", "policyholder"}, "jurisdiction": {"India"}}

	// When: merging twice
	first := v.Merge(batch)
	sizeAfterFirst := v.Len()
	second := v.Merge(batch)

	// Then: the second merge changes nothing
	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, sizeAfterFirst, v.Len())
	assert.True(t, v.Has("jurisdiction", "India"))
}

func TestVocabulary_SnapshotIsIndependent(t *testing.T) {
	v := FromMap(map[string][]string{"a": {"x"}})

	snap := v.Snapshot()
	snap["a"] = append(snap["a"], "y")
	clone := v.Clone()
	clone.Add("a", "z")

	assert.Equal(t, []string{"x"}, v.Values("a"))
}

func TestVocabulary_JSONShape(t *testing.T) {
	// Given: a vocabulary with unsorted inserts
	v := New()
	v.Add("coverage_type", "life", "dental")
	v.Add("exclusions_known")

	// When: marshaling
	data, err := json.Marshal(v)
	require.NoError(t, err)

	// Then: attribute to sorted array of strings
	assert.JSONEq(t, `{"coverage_type":["dental","life"],"exclusions_known":[]}`, string(data))

	var back Vocabulary
	require.NoError(t, json.Unmarshal([]byte(`{"a":["x","x","y"]}`), &back))
	assert.Equal(t, []string{"x", "y"}, back.Values("a"))
}

func TestVocabulary_Attributes(t *testing.T) {
	v := FromMap(map[string][]string{"b": {"1"}, "a": {"2"}})

	assert.Equal(t, []string{"a", "b"}, v.Attributes())
	assert.Empty(t, v.Values("missing"))
}
