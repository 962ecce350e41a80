package columnar

import "github.com/localcol/columnar/format"

// ColumnDescriptor identifies one leaf column of the file's schema: its
// path, and its position in the flattened, depth-first leaf ordering that
// column-chunk lists within a row group follow. Schema projection and
// record assembly above the leaf level are outside the scope of this
// reader; ColumnDescriptor carries just enough to key caches and drive
// range planning.
type ColumnDescriptor struct {
	Path    ColumnPath
	Ordinal int
	Type    format.Type

	// TypeLength is the declared byte width of a FixedLenByteArray column;
	// meaningless for every other Type.
	TypeLength int32

	// IsUUID reports whether the column's SchemaElement carries a UUID
	// logical type annotation over a 16-byte FixedLenByteArray.
	IsUUID bool
}

// Schema is the flattened list of leaf columns recovered from a file's
// trailer, in the depth-first order that row groups store their column
// chunks in.
type Schema struct {
	root    []format.SchemaElement
	Columns []ColumnDescriptor
}

// newSchema walks the flat, NumChildren-encoded SchemaElement list (the
// wire representation of the schema tree: a pre-order traversal where each
// group node's NumChildren tells the walker how many elements to consume
// as its subtree) and records every leaf in depth-first order.
func newSchema(elements []format.SchemaElement) (*Schema, error) {
	if len(elements) == 0 {
		return nil, ErrMissingRootColumn
	}

	s := &Schema{root: elements}
	pos := 1 // elements[0] is the message root, not a column itself.
	var path []string

	var walk func(parent int) error
	walk = func(elemIndex int) error {
		e := elements[elemIndex]
		if e.NumChildren == nil || *e.NumChildren == 0 {
			s.Columns = append(s.Columns, ColumnDescriptor{
				Path:       ColumnPath(append(append([]string{}, path...), e.Name)),
				Ordinal:    len(s.Columns),
				Type:       derefType(e.Type),
				TypeLength: derefInt32(e.TypeLength),
				IsUUID:     e.LogicalType != nil && e.LogicalType.UUID != nil,
			})
			return nil
		}
		path = append(path, e.Name)
		n := int(*e.NumChildren)
		for i := 0; i < n; i++ {
			if pos >= len(elements) {
				return ErrCorruptTrailer
			}
			child := pos
			pos++
			if err := walk(child); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	n := 1
	if elements[0].NumChildren != nil {
		n = int(*elements[0].NumChildren)
	}
	for i := 0; i < n; i++ {
		if pos >= len(elements) && i == 0 && n == 1 {
			// A schema with a single, childless root: treat the root
			// itself as the only leaf (degenerate, but not invalid).
			if err := walk(0); err != nil {
				return nil, err
			}
			break
		}
		child := pos
		pos++
		if err := walk(child); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func derefType(t *format.Type) format.Type {
	if t == nil {
		return format.ByteArray
	}
	return *t
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

// Name returns the root message's name.
func (s *Schema) Name() string { return s.root[0].Name }

// ColumnByPath looks up a leaf column descriptor by path.
func (s *Schema) ColumnByPath(path []string) (ColumnDescriptor, bool) {
	for _, c := range s.Columns {
		if c.Path.equal(path) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}
