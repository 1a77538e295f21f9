package id

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewGeneratesPrefixedIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		gen    func() ID
		prefix Prefix
	}{
		{"job", NewJobID, PrefixJob},
		{"worker", NewWorkerID, PrefixWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen()
			if got.IsNil() {
				t.Fatal("generated ID is nil")
			}
			if got.Prefix() != tt.prefix {
				t.Fatalf("prefix = %q, want %q", got.Prefix(), tt.prefix)
			}
			if !strings.HasPrefix(got.String(), string(tt.prefix)+"_") {
				t.Fatalf("string %q does not start with %q", got.String(), tt.prefix)
			}
		})
	}
}

func TestNewIsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 10000)
	for range 10000 {
		s := NewJobID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewJobID()
	parsed, err := ParseJobID(orig.String())
	if err != nil {
		t.Fatalf("ParseJobID: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"garbage", "not a typeid"},
		{"bad suffix", "job_!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestParseWithPrefixRejectsWrongPrefix(t *testing.T) {
	t.Parallel()

	wid := NewWorkerID()
	if _, err := ParseJobID(wid.String()); err == nil {
		t.Fatalf("ParseJobID accepted worker ID %s", wid)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewJobID()
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != orig.String() {
		t.Fatalf("round trip mismatch: %q != %q", back.String(), orig.String())
	}
}

func TestNilID(t *testing.T) {
	t.Parallel()

	if !Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if Nil.String() != "" {
		t.Fatalf("Nil.String() = %q, want empty", Nil.String())
	}

	v, err := Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value: %v", err)
	}
	if v != nil {
		t.Fatalf("Nil.Value() = %v, want nil", v)
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	orig := NewJobID()

	tests := []struct {
		name    string
		src     any
		want    string
		wantErr bool
	}{
		{"string", orig.String(), orig.String(), false},
		{"bytes", []byte(orig.String()), orig.String(), false},
		{"nil", nil, "", false},
		{"empty string", "", "", false},
		{"unsupported type", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ID
			err := got.Scan(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Scan succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("scanned %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestIDsAreSortable(t *testing.T) {
	t.Parallel()

	// UUIDv7-based IDs generated in sequence must sort in generation order
	// (the FIFO guarantee for stores that order by id). Spaced a millisecond
	// apart so each ID lands in a distinct UUIDv7 timestamp.
	prev := NewJobID().String()
	for range 20 {
		time.Sleep(2 * time.Millisecond)
		next := NewJobID().String()
		if next < prev {
			t.Fatalf("IDs not K-sortable: %s < %s", next, prev)
		}
		prev = next
	}
}
