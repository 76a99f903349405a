package actor_test

import (
	"testing"

	"github.com/Polqt/automerge-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInternFirstSeenOrder(t *testing.T) {
	tbl := actor.NewTable()
	zIdx := tbl.Intern(actor.ID("zzz"))
	aIdx := tbl.Intern(actor.ID("aaa"))
	again := tbl.Intern(actor.ID("zzz"))

	assert.Equal(t, 0, zIdx, "first-seen actor gets index 0")
	assert.Equal(t, 1, aIdx)
	assert.Equal(t, zIdx, again, "interning the same bytes twice returns the same index")
	assert.Equal(t, 2, tbl.Len())
}

func TestTableSortedIndexIsLexicographic(t *testing.T) {
	tbl := actor.NewTable()
	zIdx := tbl.Intern(actor.ID("zzz"))
	aIdx := tbl.Intern(actor.ID("aaa"))
	mIdx := tbl.Intern(actor.ID("mmm"))

	assert.Equal(t, 0, tbl.SortedIndex(aIdx))
	assert.Equal(t, 1, tbl.SortedIndex(mIdx))
	assert.Equal(t, 2, tbl.SortedIndex(zIdx))
	assert.True(t, tbl.Less(aIdx, zIdx))
	assert.False(t, tbl.Less(zIdx, aIdx))
}

func TestTableSortedActors(t *testing.T) {
	tbl := actor.NewTable()
	bIdx := tbl.Intern(actor.ID("b"))
	cIdx := tbl.Intern(actor.ID("c"))
	aIdx := tbl.Intern(actor.ID("a"))

	assert.Equal(t, []int{aIdx, bIdx, cIdx}, tbl.SortedActors())
}

func TestTableLookupAndBytes(t *testing.T) {
	tbl := actor.NewTable()
	idx := tbl.Intern(actor.ID("abc"))

	got, ok := tbl.Lookup(actor.ID("abc"))
	require.True(t, ok)
	assert.Equal(t, idx, got)

	_, ok = tbl.Lookup(actor.ID("missing"))
	assert.False(t, ok)

	assert.True(t, actor.ID("abc").Equal(tbl.Bytes(idx)))
}

func TestIDStringIsLowercaseHex(t *testing.T) {
	id := actor.ID([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Equal(t, "deadbeef", id.String())
}

func TestPropTableInternAndSortedKeys(t *testing.T) {
	pt := actor.NewPropTable()
	pt.Intern("zebra")
	pt.Intern("apple")
	pt.Intern("mango")
	again := pt.Intern("apple")

	idx, ok := pt.Lookup("apple")
	require.True(t, ok)
	assert.Equal(t, idx, again)
	assert.Equal(t, "apple", pt.Name(idx))
	assert.Equal(t, []string{"apple", "mango", "zebra"}, pt.SortedKeys())
}

func TestActorCompare(t *testing.T) {
	assert.Equal(t, -1, actor.Compare("a", "b"))
	assert.Equal(t, 1, actor.Compare("b", "a"))
	assert.Equal(t, 0, actor.Compare("a", "a"))
}
