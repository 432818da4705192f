package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectContainsAndIntersects(t *testing.T) {
	r := NewRect(Position{X: 1, Y: 1}, Position{X: 3, Y: 3})
	assert.True(t, r.Contains(Position{X: 2, Y: 2}))
	assert.False(t, r.Contains(Position{X: 4, Y: 1}))

	other := NewRect(Position{X: 3, Y: 3}, Position{X: 5, Y: 5})
	assert.True(t, r.Intersects(other))

	disjoint := NewRect(Position{X: 10, Y: 10}, Position{X: 12, Y: 12})
	assert.False(t, r.Intersects(disjoint))
}

func TestUnboundedColumn(t *testing.T) {
	col := UnboundedColumn(3)
	require.Equal(t, int64(Unbounded), col.Max.Y)
	assert.True(t, col.Contains(Position{X: 3, Y: 1_000_000}))
	assert.False(t, col.Contains(Position{X: 4, Y: 1}))
}

func TestRectUnion(t *testing.T) {
	a := NewRect(Position{X: 1, Y: 1}, Position{X: 2, Y: 2})
	b := NewRect(Position{X: 5, Y: 5}, Position{X: 6, Y: 6})
	u := a.Union(b)
	assert.Equal(t, Position{X: 1, Y: 1}, u.Min)
	assert.Equal(t, Position{X: 6, Y: 6}, u.Max)
}

func TestPositionValid(t *testing.T) {
	assert.False(t, Position{X: 0, Y: 5}.Valid())
	assert.False(t, Position{X: 5, Y: 0}.Valid())
	assert.True(t, Position{X: 1, Y: 1}.Valid())
}
