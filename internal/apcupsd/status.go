package apcupsd

import (
	"bytes"
	"sort"
	"strings"
	"unicode"
)

// Units lists the unit suffixes apcupsd appends to values, longest first so
// that "Percent Load Capacity" is never shadowed by "Percent".
var Units = longestFirst([]string{
	"Minutes",
	"Seconds",
	"Percent",
	"Volts",
	"Watts",
	"Amps",
	"Hz",
	"C",
	"VA",
	"Percent Load Capacity",
})

func longestFirst(units []string) []string {
	sort.SliceStable(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })
	return units
}

// Field is one "KEY : value" pair of a status response.
type Field struct {
	Key   string
	Value string
}

// Record is the decoded status of one UPS. Fields keep the order the NIS
// sent them in. A Record is not modified after Decode returns it.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord builds a Record from fields in order. A repeated key replaces
// the earlier value but keeps its position.
func NewRecord(fields ...Field) *Record {
	r := &Record{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		r.set(f.Key, f.Value)
	}
	return r
}

func (r *Record) set(key, value string) {
	if i, ok := r.index[key]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

// Get returns the value of key and whether it was present.
func (r *Record) Get(key string) (string, bool) {
	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// Len returns the number of distinct keys.
func (r *Record) Len() int { return len(r.fields) }

// Fields returns a copy of the ordered key/value pairs.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Keys returns the keys in order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Map returns the fields as an unordered map.
func (r *Record) Map() map[string]string {
	m := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		m[f.Key] = f.Value
	}
	return m
}

// Decode parses a raw NIS status response.
//
// Records are separated by null bytes. Each carries a leading length byte,
// which is dropped, and usually a trailing line terminator, which is dropped
// when it is a control character. Each line is split on its first colon;
// key and value are trimmed. With stripUnits, one trailing " <unit>" from
// Units is removed per line. Empty frames are skipped; any other line
// without a colon, blank ones included, fails the whole response with a
// *DecodeError.
func Decode(raw []byte, stripUnits bool) (*Record, error) {
	body := bytes.TrimSuffix(raw, sentinel)
	rec := NewRecord()

	n := 0
	for _, frame := range bytes.Split(body, []byte{0}) {
		if len(frame) == 0 {
			continue
		}
		line := frameLine(frame)
		if line == "" {
			continue
		}
		n++
		if strings.TrimSpace(line) == "" {
			return nil, &DecodeError{Line: n, Text: line}
		}

		if stripUnits {
			line = StripUnit(line)
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &DecodeError{Line: n, Text: line}
		}
		rec.set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return rec, nil
}

// frameLine strips the length byte and the terminator from one frame.
func frameLine(frame []byte) string {
	line := frame[1:]
	if l := len(line); l > 0 && line[l-1] < 0x20 {
		line = line[:l-1]
	}
	return string(line)
}

// StripUnit removes one trailing " <unit>" from s, trying the longest units
// first. Trailing whitespace is dropped before matching.
func StripUnit(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	for _, u := range Units {
		if strings.HasSuffix(s, " "+u) {
			return s[:len(s)-len(u)-1]
		}
	}
	return s
}
