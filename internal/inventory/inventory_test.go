package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_StageOrder(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var ids []ID
	for _, p := range c.Profiles() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []ID{"interests", "skills", "values", "traits", "learning-style"}, ids)
	assert.Equal(t, 5, c.Len())
}

func TestDefaultCatalog_KeySets(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	cases := map[ID]int{
		"interests":      6,
		"skills":         6,
		"values":         10,
		"traits":         5,
		"learning-style": 4,
	}
	for id, n := range cases {
		p, err := c.Lookup(id)
		require.NoError(t, err, id)
		assert.Len(t, p.Dimensions, n, id)
	}

	ls, _ := c.Lookup("learning-style")
	assert.Equal(t, -1.0, ls.Min)
	assert.Equal(t, 1.0, ls.Max)

	riasec, _ := c.Lookup("interests")
	assert.Equal(t, []string{"R", "I", "A", "S", "E", "C"}, riasec.Dimensions)
}

func TestLookup_Unknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Lookup("astrology")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownInventory))
}

func TestAt_OutOfRange(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.At(5)
	assert.Error(t, err)
	_, err = c.At(-1)
	assert.Error(t, err)

	p, err := c.At(3)
	require.NoError(t, err)
	assert.Equal(t, ID("traits"), p.ID)
}

func TestNewCatalog_Rejects(t *testing.T) {
	base := Profile{ID: "a", Dimensions: []string{"x"}, Min: 0, Max: 1, Instruction: "score"}

	_, err := NewCatalog(nil)
	assert.Error(t, err, "empty catalog")

	dup := base
	_, err = NewCatalog([]Profile{base, dup})
	assert.Error(t, err, "duplicate id")

	noDims := base
	noDims.Dimensions = nil
	_, err = NewCatalog([]Profile{noDims})
	assert.Error(t, err, "no dimensions")

	dupDims := base
	dupDims.Dimensions = []string{"x", "x"}
	_, err = NewCatalog([]Profile{dupDims})
	assert.Error(t, err, "duplicate dimension")

	badRange := base
	badRange.Min = 1
	_, err = NewCatalog([]Profile{badRange})
	assert.Error(t, err, "min >= max")
}

func TestPrompt_ListsEveryDimension(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	p, _ := c.Lookup("traits")
	prompt := p.Prompt()
	for _, d := range p.Dimensions {
		assert.Contains(t, prompt, `"`+d+`": float`)
	}
	assert.Contains(t, prompt, `"should_finish": boolean`)
}

func TestLoadCatalog_FromFile(t *testing.T) {
	doc := `
inventories:
  - id: mood
    title: Mood
    min: 0
    max: 1
    dimensions: [calm, energy]
    opening: How do you feel?
    instruction: Score the mood.
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Profiles(), 1)
	assert.Equal(t, ID("mood"), c.Profiles()[0].ID)

	p, err := c.Lookup("mood")
	require.NoError(t, err)
	assert.True(t, p.HasDimension("energy"))
	assert.False(t, p.HasDimension("R"))
}
