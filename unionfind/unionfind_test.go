package unionfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSetAndFind(t *testing.T) {
	u := New(8)
	assert.Equal(t, int32(-1), u.Find(3))
	assert.Equal(t, 0, u.NumSets())

	u.MakeSet(3)
	assert.Equal(t, int32(3), u.Find(3))
	assert.Equal(t, 1, u.NumSets())
	assert.Equal(t, int32(-1), u.Find(2))
}

func TestUnionBySize(t *testing.T) {
	u := New(10)
	for _, id := range []int32{0, 1, 2, 3} {
		u.MakeSet(id)
	}
	// Grow {2,3} to size 2.
	assert.Equal(t, int32(2), u.Union(2, 3))
	assert.Equal(t, 3, u.NumSets())

	// Smaller set {0} attaches under the larger {2,3}.
	assert.Equal(t, int32(2), u.Union(0, 2))
	assert.Equal(t, int32(2), u.Find(0))
	assert.Equal(t, int32(2), u.Find(3))
	assert.Equal(t, 2, u.NumSets())
}

func TestUnionSizeTieKeepsLowerRoot(t *testing.T) {
	u := New(4)
	for _, id := range []int32{0, 1, 2, 3} {
		u.MakeSet(id)
	}
	assert.Equal(t, int32(2), u.Union(3, 2))
	assert.Equal(t, int32(0), u.Union(1, 0))
	// Both sets have size 2; the lower root wins regardless of operand order.
	assert.Equal(t, int32(0), u.Union(2, 0))
	assert.Equal(t, int32(0), u.Find(3))
	assert.Equal(t, 1, u.NumSets())
}

func TestUnionSameSet(t *testing.T) {
	u := New(4)
	u.MakeSet(0)
	u.MakeSet(1)
	u.Union(0, 1)
	assert.Equal(t, int32(0), u.Union(0, 1))
	assert.Equal(t, 1, u.NumSets())
}

func TestExtendSetByRoot(t *testing.T) {
	u := New(6)
	u.MakeSet(5)
	u.ExtendSetByRoot(5, 1)
	u.ExtendSetByRoot(5, 2)
	assert.Equal(t, int32(5), u.Find(1))
	assert.Equal(t, int32(5), u.Find(2))
	assert.Equal(t, 1, u.NumSets())
}

// Find must not overflow the stack on a long parent chain, and compression
// must leave every node pointing at the root.
func TestLongChainCompression(t *testing.T) {
	const n = 1 << 20
	u := New(n)
	u.MakeSet(0)
	for i := int32(1); i < n; i++ {
		// Build a worst-case chain by hand.
		u.parent[i] = i - 1
		u.size[0]++
	}
	assert.Equal(t, int32(0), u.Find(n-1))
	for _, id := range []int32{1, n / 2, n - 2, n - 1} {
		assert.Equal(t, int32(0), u.parent[id])
	}
}
