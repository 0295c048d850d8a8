package collection

import (
	"log"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

var (
	once   sync.Once
	logger *zap.Logger
)

func getTestLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatal(err)
		}
	})

	return logger
}

func intKey(i int64) keys.IndexKey {
	return keys.IndexKey{keys.Int(i)}
}

// checkTree verifies ordering, parent links and red-black invariants, returns the black height
func checkTree(t *testing.T, n *redBlackNode) int {
	if n == nil {
		return 1
	}
	if n.left != nil {
		require.Same(t, n, n.left.parent)
		require.Equal(t, keys.KeyLessThan, n.left.key.Compare(n.key))
	}
	if n.right != nil {
		require.Same(t, n, n.right.parent)
		require.Equal(t, keys.KeyMoreThan, n.right.key.Compare(n.key))
	}
	if n.color == red {
		require.Equal(t, black, nodeColor(n.left), "red node %s with red child", n)
		require.Equal(t, black, nodeColor(n.right), "red node %s with red child", n)
	}
	lh := checkTree(t, n.left)
	rh := checkTree(t, n.right)
	require.Equal(t, lh, rh, "black height at %s", n)
	if n.color == black {
		lh++
	}
	return lh
}

func Test_redBlackTree_Put(t *testing.T) {
	var tree redBlackTree
	require.Equal(t, 0, tree.size)

	for _, i := range []int64{1, 2, 1, 3, 4, 5, 6} {
		tree.put(intKey(i), &record.Document{ID: "x"})
	}
	t.Log(tree.String())

	require.Equal(t, 6, tree.size)
	require.Equal(t, black, tree.root.color)
	checkTree(t, tree.root)
	require.NotNil(t, tree.get(intKey(4)))
	require.Nil(t, tree.get(intKey(8)))
}

func Test_redBlackTree_Remove(t *testing.T) {
	var tree redBlackTree
	r := rand.New(rand.NewSource(7))
	present := map[int64]bool{}

	for i := 0; i < 2000; i++ {
		k := int64(r.Intn(300))
		if r.Intn(3) == 0 {
			require.Equal(t, present[k], tree.remove(intKey(k)))
			delete(present, k)
		} else {
			require.Equal(t, !present[k], tree.put(intKey(k), &record.Document{}))
			present[k] = true
		}
		if i%100 == 0 {
			checkTree(t, tree.root)
		}
	}
	require.Equal(t, len(present), tree.size)
	checkTree(t, tree.root)
}

func Test_redBlackTree_RemoveKeepsPayload(t *testing.T) {
	var tree redBlackTree
	for i := int64(0); i < 10; i++ {
		tree.put(intKey(i), &record.Document{CreationTime: i})
	}
	require.True(t, tree.remove(tree.root.key))

	for i := int64(0); i < 10; i++ {
		if n := tree.get(intKey(i)); n != nil {
			require.Equal(t, i, n.doc.CreationTime)
		}
	}
}

func Test_iterator(t *testing.T) {
	var tree redBlackTree
	for _, i := range []int64{5, 3, 8, 1, 4, 7, 9, 2, 6} {
		tree.put(intKey(i), &record.Document{})
	}

	seg := keys.Segment{Lower: &keys.Bound{Op: keys.GreaterOrEqual, Value: keys.Int(3)}, Upper: &keys.Bound{Op: keys.LessThan, Value: keys.Int(8)}}

	var got []int64
	it := tree.iteratorAt(tree.seekFirst(seg))
	for ok := it.valid(); ok && seg.Contains(it.node().key); ok = it.next() {
		got = append(got, it.node().key[0].AsInt())
	}
	require.Equal(t, []int64{3, 4, 5, 6, 7}, got)

	got = nil
	it = tree.iteratorAt(tree.seekLast(seg))
	for ok := it.valid(); ok && seg.Contains(it.node().key); ok = it.prev() {
		got = append(got, it.node().key[0].AsInt())
	}
	require.Equal(t, []int64{7, 6, 5, 4, 3}, got)

	it = tree.iteratorAt(nil)
	require.False(t, it.valid())
	require.False(t, it.next())
}
