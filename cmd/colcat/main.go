// Command colcat opens a columnar file and prints its schema, row-group,
// and page metadata to stdout. It is a thin exercise surface for the
// columnar package, not a browser: no TUI, no server, just a dump.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/olekukonko/tablewriter"

	"github.com/localcol/columnar"
	"github.com/localcol/columnar/format"
)

var cli struct {
	Info MetaCmd `cmd:"" help:"Print a file's schema, row groups, and column chunks."`
	Cat  CatCmd  `cmd:"" help:"Print page-level metadata for a file's columns."`
}

func main() {
	parser := kong.Must(
		&cli,
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Description("colcat inspects columnar files through the columnar package."),
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	ctx.FatalIfErrorf(ctx.Run())
}

// MetaCmd prints schema, row-group, and column-chunk metadata.
type MetaCmd struct {
	Path     string `arg:"" type:"existingfile" help:"Path to the columnar file."`
	RowGroup int    `optional:"" default:"-1" help:"Limit to a single row group ordinal (-1 for all)."`
}

func (c MetaCmd) Run() error {
	src, err := openFileSource(c.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	filter := columnar.NoFilter()
	if c.RowGroup >= 0 {
		filter = columnar.RowGroupOrdinals(c.RowGroup)
	}

	f, err := columnar.Open(src, columnar.WithMetadataFilter(filter))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("schema: %s\n", f.Schema().Name())
	for _, col := range f.Schema().Columns {
		fmt.Printf("  column[%d] %s (%s)\n", col.Ordinal, col.Path, col.Type)
	}
	fmt.Printf("rows: %d\n", f.RecordCount())

	groups, err := f.RowGroups(context.Background())
	if err != nil {
		return err
	}
	for _, rg := range groups {
		fmt.Printf("row group %d: rows=%d bytes=%d offset=%d\n", rg.Ordinal(), rg.NumRows(), rg.TotalByteSize(), rg.FileOffset())
		printColumnChunkTable(f.Schema().Columns, rg.ColumnChunks())
	}
	return nil
}

// printColumnChunkTable renders one row per column chunk: the tabular
// metadata dump colcat exists to print.
func printColumnChunkTable(columns []columnar.ColumnDescriptor, chunks []columnar.ColumnChunkMetadata) {
	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader([]string{"column", "codec", "values", "compressed", "encrypted", "uuid range"})
	for i, cc := range chunks {
		col := columns[i]
		w.Append([]string{
			col.Path.String(),
			cc.Codec().String(),
			strconv.FormatInt(cc.NumValues(), 10),
			strconv.FormatInt(cc.TotalCompressedSize(), 10),
			strconv.FormatBool(cc.IsEncrypted()),
			uuidRangeString(col, cc.Statistics()),
		})
	}
	w.Render()
}

func uuidRangeString(col columnar.ColumnDescriptor, stats format.Statistics) string {
	if !col.IsUUID {
		return ""
	}
	min, ok := columnar.FormatUUIDValue(stats.MinValue)
	if !ok {
		return ""
	}
	max, ok := columnar.FormatUUIDValue(stats.MaxValue)
	if !ok {
		return ""
	}
	return min.String() + " .. " + max.String()
}

// CatCmd prints every page a file's row groups carry, optionally limited
// to one column.
type CatCmd struct {
	Path   string `arg:"" type:"existingfile" help:"Path to the columnar file."`
	Column string `optional:"" help:"Dot-joined column path to print pages for (all columns if omitted)."`
}

func (c CatCmd) Run() error {
	src, err := openFileSource(c.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := columnar.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	for {
		store, err := f.ReadNextRowGroup()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		for _, col := range f.Schema().Columns {
			if c.Column != "" && col.Path.String() != c.Column {
				continue
			}
			pipeline, ok := store.Pages([]string(col.Path))
			if !ok {
				continue
			}
			for {
				page, ok, err := pipeline.Take(ctx)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				printPage(col, page)
			}
		}
	}
	return nil
}

func printPage(col columnar.ColumnDescriptor, page columnar.Page) {
	switch {
	case page.Dictionary != nil:
		fmt.Printf("  %s: dictionary page, %d values\n", col.Path, page.Dictionary.NumValues)
	case page.DataV1 != nil:
		fmt.Printf("  %s: data page v1 #%d, %d values\n", col.Path, page.Ordinal, page.DataV1.NumValues)
	case page.DataV2 != nil:
		fmt.Printf("  %s: data page v2 #%d, %d rows\n", col.Path, page.Ordinal, page.DataV2.NumRows)
	}
}

// fileSource adapts an *os.File to columnar.SeekableSource.
type fileSource struct {
	f    *os.File
	size int64
}

func openFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) Close() error                             { return s.f.Close() }

var _ columnar.SeekableSource = (*fileSource)(nil)
