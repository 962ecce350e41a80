package columnar

import (
	"testing"

	"github.com/localcol/columnar/format"
)

func int32p(v int32) *int32 { return &v }
func typep(v format.Type) *format.Type { return &v }

func TestNewSchemaFlattensNestedGroups(t *testing.T) {
	// message root { required int64 id; group point { required int64 x; required int64 y; } }
	elements := []format.SchemaElement{
		{Name: "root", NumChildren: int32p(2)},
		{Name: "id", Type: typep(format.Int64)},
		{Name: "point", NumChildren: int32p(2)},
		{Name: "x", Type: typep(format.Int64)},
		{Name: "y", Type: typep(format.Int64)},
	}

	schema, err := newSchema(elements)
	if err != nil {
		t.Fatalf("newSchema() error = %v", err)
	}
	if schema.Name() != "root" {
		t.Fatalf("Name() = %q, want %q", schema.Name(), "root")
	}
	if len(schema.Columns) != 3 {
		t.Fatalf("len(Columns) = %d, want 3", len(schema.Columns))
	}

	wantPaths := []string{"id", "point.x", "point.y"}
	for i, want := range wantPaths {
		if got := schema.Columns[i].Path.String(); got != want {
			t.Errorf("Columns[%d].Path = %q, want %q", i, got, want)
		}
		if schema.Columns[i].Ordinal != i {
			t.Errorf("Columns[%d].Ordinal = %d, want %d", i, schema.Columns[i].Ordinal, i)
		}
	}
}

func TestNewSchemaRejectsEmptySchema(t *testing.T) {
	if _, err := newSchema(nil); err != ErrMissingRootColumn {
		t.Fatalf("newSchema(nil) error = %v, want %v", err, ErrMissingRootColumn)
	}
}

func TestSchemaColumnByPath(t *testing.T) {
	elements := []format.SchemaElement{
		{Name: "root", NumChildren: int32p(1)},
		{Name: "id", Type: typep(format.Int64)},
	}
	schema, err := newSchema(elements)
	if err != nil {
		t.Fatalf("newSchema() error = %v", err)
	}
	if _, ok := schema.ColumnByPath([]string{"id"}); !ok {
		t.Fatal("ColumnByPath([id]) not found")
	}
	if _, ok := schema.ColumnByPath([]string{"missing"}); ok {
		t.Fatal("ColumnByPath([missing]) unexpectedly found")
	}
}

func TestNewSchemaMarksUUIDColumn(t *testing.T) {
	elements := []format.SchemaElement{
		{Name: "root", NumChildren: int32p(1)},
		{
			Name:        "id",
			Type:        typep(format.FixedLenByteArray),
			LogicalType: &format.LogicalType{UUID: &format.UUIDType{}},
		},
	}
	schema, err := newSchema(elements)
	if err != nil {
		t.Fatalf("newSchema() error = %v", err)
	}
	if !schema.Columns[0].IsUUID {
		t.Fatal("Columns[0].IsUUID = false, want true")
	}
}
