package decode

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type validation struct {
	Value1 uint64 `proc:"value1"`
	Name   string `proc:"name"`
	Horse  bool   `proc:"horse"`
}

const twoRecords = "value1: 15 kB\nname: Test\nhorse: yes\n\nvalue1: 432 kB\nname: Validation\nhorse: no\n"

func TestUnmarshalRecord(t *testing.T) {
	var got validation
	if err := UnmarshalString("value1: 15 kB\nname: Test\nhorse: yes\n", &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	expected := validation{15, "Test", true}
	if got != expected {
		t.Errorf("Expected %+v, got %+v", expected, got)
	}
}

func TestFieldOrderIndependence(t *testing.T) {
	orders := []string{
		"value1: 15 kB\nname: Test\nhorse: yes\n",
		"horse: yes\nvalue1: 15 kB\nname: Test\n",
		"name: Test\nhorse: yes\nvalue1: 15 kB",
	}
	for _, input := range orders {
		got, err := Decode[validation]([]byte(input))
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", input, err)
		}
		if got != (validation{15, "Test", true}) {
			t.Errorf("Decode(%q) = %+v", input, got)
		}
	}
}

func TestIndentedKeys(t *testing.T) {
	type rec struct {
		A uint64 `proc:"a"`
		B uint64 `proc:"b,optional"`
	}
	for _, input := range []string{"a: 1\n  b: 2\n", "a: 1\n\tb: 2\n", "  a: 1\n b : 2"} {
		var got rec
		if err := UnmarshalString(input, &got); err != nil {
			t.Fatalf("Unmarshal(%q) failed: %v", input, err)
		}
		if got != (rec{1, 2}) {
			t.Errorf("Unmarshal(%q): expected {1 2}, got %+v", input, got)
		}
	}
}

func TestUnitSuffixStripping(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
	}{
		{"15 kB", 15},
		{"32587776 kB", 32587776},
		{"0", 0},
		{"18446744073709551615", 18446744073709551615},
	}
	for _, tt := range tests {
		var got uint64
		if err := UnmarshalString(tt.input, &got); err != nil {
			t.Fatalf("Unmarshal(%q) failed: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("Unmarshal(%q): expected %d, got %d", tt.input, tt.expected, got)
		}
	}
}

func TestBoolLexicon(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		kind     Kind
	}{
		{"yes", true, 0},
		{"no", false, 0},
		{"maybe", false, InvalidBool},
		{"Yes", false, InvalidBool},
		{"true", false, InvalidBool},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got bool
			err := UnmarshalString(tt.input, &got)
			if tt.kind != 0 {
				if !errors.Is(err, tt.kind) {
					t.Fatalf("Expected %v, got %v", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestArrayOfRecords(t *testing.T) {
	var got []validation
	if err := UnmarshalString(twoRecords, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	expected := []validation{{15, "Test", true}, {432, "Validation", false}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %+v, got %+v", expected, got)
	}
}

func TestArrayOfPointers(t *testing.T) {
	got, err := Decode[[]*validation]([]byte(twoRecords))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 2 || got[1].Name != "Validation" {
		t.Errorf("Unexpected records %+v", got)
	}
}

func TestSingleRecordSequence(t *testing.T) {
	got, err := Decode[[]validation]([]byte("value1: 1\nname: a\nhorse: no\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 record, got %d", len(got))
	}
}

func TestEmptySequence(t *testing.T) {
	got, err := Decode[[]validation]([]byte("\n\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}

func TestTrailingCharacters(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target any
	}{
		{"primitive second line", "15 kB\nx", new(uint64)},
		{"record dangling key", "value1: 15\nname: a\nhorse: yes\nx", new(validation)},
		{"record then section", twoRecords, new(validation)},
		{"sequence dangling key", twoRecords + "x", new([]validation)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UnmarshalString(tt.input, tt.target)
			if !errors.Is(err, TrailingCharacters) {
				t.Fatalf("Expected TrailingCharacters, got %v", err)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		key   string
	}{
		{"not a number", "value1: lots\nname: a\nhorse: no\n", ExpectedInteger, "value1"},
		{"bad bool", "value1: 1\nname: a\nhorse: maybe\n", InvalidBool, "horse"},
		{"missing field", "value1: 1\nname: a\n", MissingField, "horse"},
		{"missing separator", "value1 1\nname: a\nhorse: no\n", MissingSeparator, "value1 1"},
		{"grammar", "value1: 1\n: a\nhorse: no\n", GrammarMismatch, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v validation
			err := UnmarshalString(tt.input, &v)
			var de *Error
			if !errors.As(err, &de) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if de.Kind != tt.kind {
				t.Errorf("Expected kind %v, got %v", tt.kind, de.Kind)
			}
			if de.Key != tt.key {
				t.Errorf("Expected key %q, got %q", tt.key, de.Key)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf returned %v", KindOf(err))
			}
		})
	}
}

func TestErrorOffsetInSequence(t *testing.T) {
	input := "value1: 1\nname: a\nhorse: no\n\nvalue1: 2\nname: b\nhorse: maybe\n"
	var v []validation
	err := UnmarshalString(input, &v)
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if want := strings.Index(input, "maybe"); de.Offset != want {
		t.Errorf("Expected offset %d, got %d", want, de.Offset)
	}
}

func TestFailedDecodeLeavesTargetUntouched(t *testing.T) {
	v := validation{7, "keep", true}
	if err := UnmarshalString("value1: 1\nname: a\nhorse: maybe\n", &v); err == nil {
		t.Fatal("Expected error")
	}
	if v != (validation{7, "keep", true}) {
		t.Errorf("Target was modified: %+v", v)
	}
}

func TestDuplicateKeyFirstWins(t *testing.T) {
	var v validation
	if err := UnmarshalString("value1: 1\nvalue1: 2\nname: a\nhorse: no\n", &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.Value1 != 1 {
		t.Errorf("Expected first occurrence 1, got %d", v.Value1)
	}
}

func TestUnknownKeysIgnored(t *testing.T) {
	var v validation
	if err := UnmarshalString("zebra: 9\nvalue1: 1\nname: a\nhorse: no\n", &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v != (validation{1, "a", false}) {
		t.Errorf("Unexpected %+v", v)
	}
}

type optionalFields struct {
	Total  uint64   `proc:"MemTotal"`
	Zswap  *uint64  `proc:"Zswap"`
	Hidden uint64   `proc:"Hidden,optional"`
	MHz    float32  `proc:"cpu MHz,optional"`
	Flags  []string `proc:"flags,optional"`
	Delta  int      `proc:"delta,optional"`
	Skip   string   `proc:"-"`
}

func TestOptionalFields(t *testing.T) {
	got, err := Decode[optionalFields]([]byte("MemTotal: 10 kB\ncpu MHz\t: 2400.125\nflags : fpu vme  de\ndelta: -3\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Total != 10 || got.Zswap != nil || got.Hidden != 0 {
		t.Errorf("Unexpected integers %+v", got)
	}
	if got.MHz != 2400.125 {
		t.Errorf("Expected MHz 2400.125, got %v", got.MHz)
	}
	if !reflect.DeepEqual(got.Flags, []string{"fpu", "vme", "de"}) {
		t.Errorf("Unexpected flags %q", got.Flags)
	}
	if got.Delta != -3 {
		t.Errorf("Expected delta -3, got %d", got.Delta)
	}

	got, err = Decode[optionalFields]([]byte("MemTotal: 10 kB\nZswap: 4 kB\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Zswap == nil || *got.Zswap != 4 {
		t.Errorf("Expected Zswap 4, got %v", got.Zswap)
	}
}

func TestOverflow(t *testing.T) {
	type small struct {
		N uint8 `proc:"n"`
	}
	_, err := Decode[small]([]byte("n: 300"))
	if !errors.Is(err, ExpectedInteger) {
		t.Errorf("Expected ExpectedInteger on overflow, got %v", err)
	}
}

func TestIdempotence(t *testing.T) {
	data := []byte(twoRecords)
	first, err := Decode[[]validation](data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	second, err := Decode[[]validation](data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Decodes differ: %+v vs %+v", first, second)
	}

	first[0].Name = "changed"
	if second[0].Name != "Test" {
		t.Error("Results share state")
	}
}

func TestResultsDoNotAliasInput(t *testing.T) {
	data := []byte("value1: 1\nname: original\nhorse: no\n")
	got, err := Decode[validation](data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	copy(data[bytes.Index(data, []byte("original")):], "XXXXXXXX")
	if got.Name != "original" {
		t.Errorf("Decoded string changed with input: %q", got.Name)
	}
}

func TestDecoderWithLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var v validation
	dec := NewDecoder(strings.NewReader("zebra: 1\nvalue1: 1\nname: a\nhorse: no\n"), WithLogger(logger))
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !strings.Contains(logs.String(), "skipping unknown key") {
		t.Errorf("Expected skip to be logged, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "component=decode") {
		t.Errorf("Expected component attribute, got %q", logs.String())
	}
}

func TestInvalidTargets(t *testing.T) {
	var v validation
	targets := map[string]any{
		"non-pointer": v,
		"nil pointer": (*validation)(nil),
		"map":         new(map[string]string),
	}
	for name, target := range targets {
		t.Run(name, func(t *testing.T) {
			var se *SchemaError
			if err := UnmarshalString("a: 1", target); !errors.As(err, &se) {
				t.Errorf("Expected SchemaError, got %v", err)
			}
		})
	}
}

func TestRecords(t *testing.T) {
	recs, err := Records(twoRecords, ShapeSequence)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if v, _ := recs[1].Get("name"); v != "Validation" {
		t.Errorf("Expected Validation, got %q", v)
	}
	if recs[0][0].Key != "value1" {
		t.Errorf("Expected source order, got %+v", recs[0])
	}

	_, err = Records(twoRecords, ShapeMap)
	if !errors.Is(err, TrailingCharacters) {
		t.Errorf("Expected TrailingCharacters for two records as a map, got %v", err)
	}
}

func TestConcurrentDecode(t *testing.T) {
	// decoded nowhere else, so the schema cache is filled under contention
	type concurrentRecord struct {
		ID    uint64 `proc:"id"`
		Label string `proc:"label"`
		On    bool   `proc:"on"`
	}

	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("id: " + strconv.Itoa(i) + "\nlabel: rec" + strconv.Itoa(i) + "\non: yes\n\n")
	}
	data := []byte(b.String())

	const goroutines, iterations = 16, 50
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				recs, err := Decode[[]concurrentRecord](data)
				if err != nil {
					errs <- err
					return
				}
				if len(recs) != 8 {
					errs <- errors.New("expected 8 records, got " + strconv.Itoa(len(recs)))
					return
				}
				for n, r := range recs {
					if r.ID != uint64(n) || r.Label != "rec"+strconv.Itoa(n) || !r.On {
						errs <- errors.New("unexpected record " + strconv.Itoa(n) + ": " + r.Label)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type countingVisitor struct {
	noValues
	fields []string
}

func (c *countingVisitor) VisitField(f *Field) (Visitor, error) {
	c.fields = append(c.fields, f.Key)
	return &countingVisitor{}, nil
}

func (c *countingVisitor) VisitElem() (Visitor, error) { return c, nil }
func (c *countingVisitor) VisitUint(uint64) error      { return nil }

func TestDecodeDocumentHandBuiltSchema(t *testing.T) {
	s := Map(Field{Name: "a", Rule: RuleUint}, Field{Name: "b", Rule: RuleUint, Optional: true})
	v := &countingVisitor{}
	if err := DecodeDocument("b: 2\na: 1\n", s, v); err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	if !reflect.DeepEqual(v.fields, []string{"b", "a"}) {
		t.Errorf("Unexpected visit order %v", v.fields)
	}
}

func BenchmarkUnmarshalSequence(b *testing.B) {
	data := []byte(strings.Repeat(twoRecords+"\n", 64))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var v []validation
		if err := Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
}
