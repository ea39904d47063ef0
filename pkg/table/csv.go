package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"
)

// CSVOptions controls how CSV files map to tables.
//
// Header cells have the form "name:type" (type as accepted by
// types.ParseType); a bare "name" is a string column. When KeyColumn is set,
// that column supplies row keys and is not part of the schema; otherwise keys
// are generated as "Row0", "Row1", ...
type CSVOptions struct {
	Comma     rune
	KeyColumn string
}

// ReadCSV loads a whole CSV stream into a MemTable. Empty cells and "?" are
// read as missing.
func ReadCSV(r io.Reader, opts CSVOptions) (*MemTable, error) {
	t, err := ScanCSV(r, opts, NewMemBuilderFactory())
	if err != nil {
		return nil, err
	}
	return t.(*MemTable), nil
}

// ScanCSV streams a CSV file into a builder made by newBuilder once the
// header is known, and returns the built table.
func ScanCSV(r io.Reader, opts CSVOptions, newBuilder BuilderFactory) (Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	keyIdx := -1
	var fieldTypes []types.Type
	var fieldNames []string
	var cellIdx []int
	for i, h := range header {
		name, typeName, hasType := strings.Cut(strings.TrimSpace(h), ":")
		if opts.KeyColumn != "" && name == opts.KeyColumn {
			keyIdx = i
			continue
		}
		t := types.StringType
		if hasType {
			if t, err = types.ParseType(strings.TrimSpace(typeName)); err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
		}
		fieldTypes = append(fieldTypes, t)
		fieldNames = append(fieldNames, name)
		cellIdx = append(cellIdx, i)
	}
	if opts.KeyColumn != "" && keyIdx < 0 {
		return nil, fmt.Errorf("key column %q not found in header", opts.KeyColumn)
	}

	td, err := tuple.NewTupleDesc(fieldTypes, fieldNames)
	if err != nil {
		return nil, err
	}

	b := newBuilder(td)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		row := tuple.NewTuple(td)
		if keyIdx >= 0 {
			row.Key = record[keyIdx]
		} else {
			row.Key = fmt.Sprintf("Row%d", line-2)
		}
		for i, src := range cellIdx {
			f, err := types.CreateFieldFromConstant(fieldTypes[i], record[src])
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, fieldNames[i], err)
			}
			if err := row.SetField(i, f); err != nil {
				return nil, err
			}
		}
		if err := b.AddRow(row); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// WriteCSV writes t with a typed header. The row key is written first under
// keyHeader; missing cells are written as "?".
func WriteCSV(w io.Writer, t Table, keyHeader string) error {
	writer := csv.NewWriter(w)
	td := t.Schema()

	header := make([]string, 0, td.NumFields()+1)
	header = append(header, keyHeader)
	for i, name := range td.FieldNames {
		header = append(header, name+":"+csvTypeName(td.Types[i]))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	rows := Rows(t, DefaultBlockSize)
	defer rows.Close()
	record := make([]string, len(header))
	for {
		ok, err := rows.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := rows.Next()
		if err != nil {
			return err
		}
		record[0] = row.Key
		for i := range row.NumFields() {
			record[i+1] = row.Field(i).String()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func csvTypeName(t types.Type) string {
	switch t {
	case types.IntType:
		return "int"
	case types.FloatType:
		return "float"
	case types.BoolType:
		return "bool"
	default:
		return "string"
	}
}
