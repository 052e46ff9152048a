// Package bqrs reads and writes the binary tuple-relation format produced
// by query evaluation. A file holds zero or more named result sets; each
// set carries a column schema and its rows. Decoding is paged: callers
// hold the row offset and ask for one page at a time.
package bqrs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"qlmodel/internal/domain"
)

var magic = []byte("QLRS")

const formatVersion = 1

// Column kind tags on the wire.
const (
	tagString  byte = 0x01
	tagInteger byte = 0x02
	tagFloat   byte = 0x03
	tagBoolean byte = 0x04
	tagEntity  byte = 0x05
)

func kindTag(k domain.ColumnKind) (byte, error) {
	switch k {
	case domain.KindString:
		return tagString, nil
	case domain.KindInteger:
		return tagInteger, nil
	case domain.KindFloat:
		return tagFloat, nil
	case domain.KindBoolean:
		return tagBoolean, nil
	case domain.KindEntity:
		return tagEntity, nil
	default:
		return 0, fmt.Errorf("unknown column kind %d", k)
	}
}

func tagKind(t byte) (domain.ColumnKind, error) {
	switch t {
	case tagString:
		return domain.KindString, nil
	case tagInteger:
		return domain.KindInteger, nil
	case tagFloat:
		return domain.KindFloat, nil
	case tagBoolean:
		return domain.KindBoolean, nil
	case tagEntity:
		return domain.KindEntity, nil
	default:
		return 0, fmt.Errorf("unknown column tag 0x%02x", t)
	}
}

// ResultSet is one named relation, used when writing a file.
type ResultSet struct {
	Name    string
	Columns []domain.Column
	Tuples  [][]domain.Value
}

// Write encodes the given result sets to path.
func Write(path string, sets []ResultSet) error {
	var buf bytes.Buffer
	buf.Write(magic)
	writeUvarint(&buf, formatVersion)
	writeUvarint(&buf, uint64(len(sets)))

	for _, set := range sets {
		block, err := encodeSet(set)
		if err != nil {
			return fmt.Errorf("encode result set %q: %w", set.Name, err)
		}
		writeUvarint(&buf, uint64(len(block)))
		buf.Write(block)
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

func encodeSet(set ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, set.Name)
	writeUvarint(&buf, uint64(len(set.Columns)))
	for _, col := range set.Columns {
		writeString(&buf, col.Name)
		tag, err := kindTag(col.Kind)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(tag)
	}

	writeUvarint(&buf, uint64(len(set.Tuples)))
	for i, tuple := range set.Tuples {
		if len(tuple) != len(set.Columns) {
			return nil, fmt.Errorf("tuple %d has %d cells, schema has %d columns", i, len(tuple), len(set.Columns))
		}
		for j, cell := range tuple {
			encodeCell(&buf, set.Columns[j].Kind, cell)
		}
	}
	return buf.Bytes(), nil
}

func encodeCell(buf *bytes.Buffer, kind domain.ColumnKind, v domain.Value) {
	switch kind {
	case domain.KindString:
		writeString(buf, v.Str)
	case domain.KindInteger:
		writeVarint(buf, v.Int)
	case domain.KindFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float))
		buf.Write(b[:])
	case domain.KindBoolean:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case domain.KindEntity:
		writeString(buf, v.Entity.Label)
		writeString(buf, v.Entity.Location.URI)
		writeUvarint(buf, uint64(v.Entity.Location.StartLine))
		writeUvarint(buf, uint64(v.Entity.Location.StartColumn))
		writeUvarint(buf, uint64(v.Entity.Location.EndLine))
		writeUvarint(buf, uint64(v.Entity.Location.EndColumn))
	}
}

func writeUvarint(buf *bytes.Buffer, u uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], u)
	buf.Write(b[:n])
}

func writeVarint(buf *bytes.Buffer, i int64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutVarint(b[:], i)
	buf.Write(b[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

type parsedSet struct {
	name     string
	columns  []domain.Column
	rowCount int
	rows     []byte // encoded row data
}

// Reader holds a parsed result file and serves page decodes. Decoding is
// stateless per call; the caller owns the offset.
type Reader struct {
	sets []parsedSet
}

// Open reads and parses path. A file with zero result sets is valid.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	return Parse(data)
}

// Parse decodes an in-memory result file.
func Parse(data []byte) (*Reader, error) {
	r := bytes.NewReader(data)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(head, magic) {
		return nil, fmt.Errorf("not a result file (bad magic %q)", head)
	}
	version, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported result format version %d", version)
	}
	numSets, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read result set count: %w", err)
	}

	reader := &Reader{}
	for i := uint64(0); i < numSets; i++ {
		blockLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("read block length: %w", err)
		}
		block := make([]byte, blockLen)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, fmt.Errorf("read result set block: %w", err)
		}
		set, err := parseSet(block)
		if err != nil {
			return nil, fmt.Errorf("parse result set %d: %w", i, err)
		}
		reader.sets = append(reader.sets, set)
	}
	return reader, nil
}

func parseSet(block []byte) (parsedSet, error) {
	r := bytes.NewReader(block)

	name, err := readString(r)
	if err != nil {
		return parsedSet{}, fmt.Errorf("read name: %w", err)
	}
	numCols, err := binary.ReadUvarint(r)
	if err != nil {
		return parsedSet{}, fmt.Errorf("read column count: %w", err)
	}

	columns := make([]domain.Column, 0, numCols)
	for i := uint64(0); i < numCols; i++ {
		colName, err := readString(r)
		if err != nil {
			return parsedSet{}, fmt.Errorf("read column name: %w", err)
		}
		tag, err := r.ReadByte()
		if err != nil {
			return parsedSet{}, fmt.Errorf("read column tag: %w", err)
		}
		kind, err := tagKind(tag)
		if err != nil {
			return parsedSet{}, err
		}
		columns = append(columns, domain.Column{Name: colName, Kind: kind})
	}

	rowCount, err := binary.ReadUvarint(r)
	if err != nil {
		return parsedSet{}, fmt.Errorf("read row count: %w", err)
	}

	rest := block[len(block)-r.Len():]
	return parsedSet{
		name:     name,
		columns:  columns,
		rowCount: int(rowCount),
		rows:     rest,
	}, nil
}

// ResultSets returns the names of the sets in file order.
func (r *Reader) ResultSets() []string {
	names := make([]string, len(r.sets))
	for i, s := range r.sets {
		names[i] = s.name
	}
	return names
}

// Schema returns the column schema and total row count of a result set.
func (r *Reader) Schema(name string) ([]domain.Column, int, error) {
	set, err := r.find(name)
	if err != nil {
		return nil, 0, err
	}
	return append([]domain.Column(nil), set.columns...), set.rowCount, nil
}

// Decode returns one page of a result set starting at the given row
// offset. NextPageOffset is set iff rows remain past this page. A
// pageSize of 0 or less decodes all remaining rows.
func (r *Reader) Decode(name string, offset, pageSize int) (*domain.Chunk, error) {
	set, err := r.find(name)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > set.rowCount {
		return nil, fmt.Errorf("row offset %d out of range (0..%d)", offset, set.rowCount)
	}

	remaining := set.rowCount - offset
	want := remaining
	if pageSize > 0 && pageSize < remaining {
		want = pageSize
	}

	cursor := bytes.NewReader(set.rows)
	for i := 0; i < offset; i++ {
		if err := skipRow(cursor, set.columns); err != nil {
			return nil, fmt.Errorf("skip row %d: %w", i, err)
		}
	}

	tuples := make([][]domain.Value, 0, want)
	for i := 0; i < want; i++ {
		row, err := decodeRow(cursor, set.columns)
		if err != nil {
			return nil, fmt.Errorf("decode row %d: %w", offset+i, err)
		}
		tuples = append(tuples, row)
	}

	chunk := &domain.Chunk{
		Columns: append([]domain.Column(nil), set.columns...),
		Tuples:  tuples,
	}
	if offset+want < set.rowCount {
		next := offset + want
		chunk.NextPageOffset = &next
	}
	return chunk, nil
}

func (r *Reader) find(name string) (*parsedSet, error) {
	for i := range r.sets {
		if r.sets[i].name == name {
			return &r.sets[i], nil
		}
	}
	return nil, fmt.Errorf("no result set named %q", name)
}

func decodeRow(r *bytes.Reader, columns []domain.Column) ([]domain.Value, error) {
	row := make([]domain.Value, len(columns))
	for i, col := range columns {
		v, err := decodeCell(r, col.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func skipRow(r *bytes.Reader, columns []domain.Column) error {
	for _, col := range columns {
		if _, err := decodeCell(r, col.Kind); err != nil {
			return err
		}
	}
	return nil
}

func decodeCell(r *bytes.Reader, kind domain.ColumnKind) (domain.Value, error) {
	v := domain.Value{Kind: kind}
	switch kind {
	case domain.KindString:
		s, err := readString(r)
		if err != nil {
			return v, err
		}
		v.Str = s
	case domain.KindInteger:
		n, err := binary.ReadVarint(r)
		if err != nil {
			return v, err
		}
		v.Int = n
	case domain.KindFloat:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return v, err
		}
		v.Float = math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
	case domain.KindBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return v, err
		}
		v.Bool = b != 0
	case domain.KindEntity:
		label, err := readString(r)
		if err != nil {
			return v, err
		}
		uri, err := readString(r)
		if err != nil {
			return v, err
		}
		pos := make([]int, 4)
		for i := range pos {
			u, err := binary.ReadUvarint(r)
			if err != nil {
				return v, err
			}
			pos[i] = int(u)
		}
		v.Entity = domain.EntityRef{
			Label: label,
			Location: domain.Location{
				URI:         uri,
				StartLine:   pos[0],
				StartColumn: pos[1],
				EndLine:     pos[2],
				EndColumn:   pos[3],
			},
		}
	default:
		return v, fmt.Errorf("unknown column kind %d", kind)
	}
	return v, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", fmt.Errorf("string length %d exceeds remaining data", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
