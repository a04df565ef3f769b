// Package fff reads and writes the line oriented "Key: Value" container used
// by saved signal and keystore files.
//
//	Filetype: Flipper SubGhz Key File
//	Version: 1
//	Protocol: Princeton
//	Bit: 24
//	Key: 00 00 00 00 00 5A 5A 54
package fff

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMissing = errors.New("fff: missing key")
	ErrSyntax  = errors.New("fff: syntax error")
)

const separator = ": "

type Field struct {
	Key   string
	Value string
}

// A File is an ordered list of fields. Keys may repeat (RAW_Data does).
type File struct {
	Fields []Field
}

func New() *File {
	return &File{}
}

// ParseLine splits a "Key: Value" line.
func ParseLine(line string) (key, value string, ok bool) {
	idx := strings.Index(line, separator)
	if idx <= 0 {
		// Allow an empty value written as "Key:".
		if strings.HasSuffix(line, ":") && len(line) > 1 && !strings.ContainsAny(line[:len(line)-1], ": ") {
			return line[:len(line)-1], "", true
		}
		return "", "", false
	}
	return line[:idx], line[idx+len(separator):], true
}

// A Reader reads a container one line at a time. Callers that mix fields
// with free form body lines (keystores) use Field for the header and Line
// for the rest.
type Reader struct {
	s    *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), 1<<20)
	return &Reader{s: s}
}

// Line returns the next line with the trailing carriage return removed.
// Comment lines starting with '#' are skipped.
func (r *Reader) Line() (string, bool) {
	for r.s.Scan() {
		r.line++
		line := strings.TrimRight(r.s.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

// Field reads the next line and requires it to be key.
func (r *Reader) Field(key string) (string, error) {
	line, ok := r.Line()
	if !ok {
		if err := r.Err(); err != nil {
			return "", err
		}
		return "", errors.Wrapf(ErrMissing, "%q", key)
	}

	k, v, ok := ParseLine(line)
	if !ok {
		return "", errors.Wrapf(ErrSyntax, "line %d", r.line)
	}
	if k != key {
		return "", errors.Wrapf(ErrMissing, "line %d: expected %q got %q", r.line, key, k)
	}
	return v, nil
}

func (r *Reader) Err() error {
	return errors.Wrap(r.s.Err(), "fff: read")
}

// Read parses every line of r as a field. Blank lines are ignored.
func Read(r io.Reader) (*File, error) {
	rd := NewReader(r)
	f := New()
	for {
		line, ok := rd.Line()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		k, v, ok := ParseLine(line)
		if !ok {
			return nil, errors.Wrapf(ErrSyntax, "line %d", rd.line)
		}
		f.Add(k, v)
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTo writes f in container form.
func (f *File) WriteTo(w io.Writer) (n int64, err error) {
	bw := bufio.NewWriter(w)
	for _, field := range f.Fields {
		var m int
		m, err = fmt.Fprintf(bw, "%s%s%s\n", field.Key, separator, field.Value)
		n += int64(m)
		if err != nil {
			return n, errors.Wrap(err, "fff: write")
		}
	}
	return n, errors.Wrap(bw.Flush(), "fff: write")
}

func (f *File) Get(key string) (string, bool) {
	for _, field := range f.Fields {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// All returns every value stored under key, in file order.
func (f *File) All(key string) (values []string) {
	for _, field := range f.Fields {
		if field.Key == key {
			values = append(values, field.Value)
		}
	}
	return values
}

func (f *File) String(key string) (string, error) {
	v, ok := f.Get(key)
	if !ok {
		return "", errors.Wrapf(ErrMissing, "%q", key)
	}
	return v, nil
}

func (f *File) Uint32(key string) (uint32, error) {
	v, err := f.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "%q: %s", key, err)
	}
	return uint32(n), nil
}

// Hex reads a space separated byte array such as "00 5A 5A 54".
func (f *File) Hex(key string) ([]byte, error) {
	v, err := f.String(key)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(v), ""))
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "%q: %s", key, err)
	}
	return b, nil
}

// Set replaces the first value stored under key, or appends it.
func (f *File) Set(key, value string) {
	for idx := range f.Fields {
		if f.Fields[idx].Key == key {
			f.Fields[idx].Value = value
			return
		}
	}
	f.Add(key, value)
}

func (f *File) Add(key, value string) {
	f.Fields = append(f.Fields, Field{key, value})
}

func (f *File) SetUint32(key string, v uint32) {
	f.Set(key, strconv.FormatUint(uint64(v), 10))
}

func (f *File) SetHex(key string, b []byte) {
	f.Set(key, FormatHex(b))
}

// FormatHex renders b as upper case, space separated byte pairs.
func FormatHex(b []byte) string {
	var sb strings.Builder
	for idx, v := range b {
		if idx > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
