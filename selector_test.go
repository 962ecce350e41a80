package columnar

import (
	"encoding/binary"
	"testing"

	"github.com/localcol/columnar/format"
)

func TestSplitDictionaryValuesFixedWidth(t *testing.T) {
	dict := &DictionaryPage{Bytes: []byte{
		1, 0, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0, 0, 0, 0, 0,
	}}
	col := ColumnDescriptor{Type: format.Int64}

	values := splitDictionaryValues(dict, col)
	if len(values) != 3 {
		t.Fatalf("len(values) = %d, want 3", len(values))
	}
	for i, want := range []int64{1, 2, 3} {
		if int64(binary.LittleEndian.Uint64(values[i])) != want {
			t.Fatalf("values[%d] = %v, want %d", i, values[i], want)
		}
	}
}

func TestSplitDictionaryValuesFixedLenByteArray(t *testing.T) {
	dict := &DictionaryPage{Bytes: []byte("aaaabbbbcccc")}
	col := ColumnDescriptor{Type: format.FixedLenByteArray, TypeLength: 4}

	values := splitDictionaryValues(dict, col)
	want := []string{"aaaa", "bbbb", "cccc"}
	if len(values) != len(want) {
		t.Fatalf("len(values) = %d, want %d", len(values), len(want))
	}
	for i, w := range want {
		if string(values[i]) != w {
			t.Fatalf("values[%d] = %q, want %q", i, values[i], w)
		}
	}
}

func TestSplitDictionaryValuesByteArray(t *testing.T) {
	var buf []byte
	for _, s := range []string{"hello", "hi", "greetings"} {
		var lenBytes [4]byte
		binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
		buf = append(buf, lenBytes[:]...)
		buf = append(buf, s...)
	}
	dict := &DictionaryPage{Bytes: buf}
	col := ColumnDescriptor{Type: format.ByteArray}

	values := splitDictionaryValues(dict, col)
	want := []string{"hello", "hi", "greetings"}
	if len(values) != len(want) {
		t.Fatalf("len(values) = %d, want %d", len(values), len(want))
	}
	for i, w := range want {
		if string(values[i]) != w {
			t.Fatalf("values[%d] = %q, want %q", i, values[i], w)
		}
	}
}

func TestSplitDictionaryValuesFallsBackForDegenerateFixedLenByteArray(t *testing.T) {
	dict := &DictionaryPage{Bytes: []byte("whatever")}
	col := ColumnDescriptor{Type: format.FixedLenByteArray, TypeLength: 0}

	values := splitDictionaryValues(dict, col)
	if len(values) != 1 || string(values[0]) != "whatever" {
		t.Fatalf("values = %v, want a single entry with the whole page", values)
	}
}

// equalityPredicate is a minimal Predicate that only exercises
// MayMatchDictionary, used to prove splitDictionaryValues actually produces
// values an equality probe can compare one at a time.
type equalityPredicate struct {
	path ColumnPath
	want []byte
}

func (p equalityPredicate) Columns() []ColumnPath { return []ColumnPath{p.path} }
func (p equalityPredicate) MayMatchStatistics(ColumnPath, format.Statistics) bool {
	return true
}
func (p equalityPredicate) MayMatchDictionary(path ColumnPath, dictionary [][]byte) bool {
	for _, v := range dictionary {
		if string(v) == string(p.want) {
			return true
		}
	}
	return false
}
func (p equalityPredicate) MayMatchBloomFilter(ColumnPath, func([]byte) bool) bool { return true }

var _ Predicate = equalityPredicate{}

func TestSplitDictionaryValuesEnablesEqualityPruning(t *testing.T) {
	var buf []byte
	for _, s := range []string{"apple", "banana", "cherry"} {
		var lenBytes [4]byte
		binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
		buf = append(buf, lenBytes[:]...)
		buf = append(buf, s...)
	}
	dict := &DictionaryPage{Bytes: buf}
	col := ColumnDescriptor{Path: ColumnPath{"fruit"}, Type: format.ByteArray}

	values := splitDictionaryValues(dict, col)

	present := equalityPredicate{path: col.Path, want: []byte("banana")}
	if !present.MayMatchDictionary(col.Path, values) {
		t.Fatal("MayMatchDictionary() = false, want true for a value present in the dictionary")
	}

	absent := equalityPredicate{path: col.Path, want: []byte("durian")}
	if absent.MayMatchDictionary(col.Path, values) {
		t.Fatal("MayMatchDictionary() = true, want false for a value absent from the dictionary")
	}
}
