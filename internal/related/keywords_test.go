package related

import (
	"reflect"
	"testing"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		text string
		want []uint
	}{
		{"see #42 for details", []uint{42}},
		{"duplicate of Ticket #17", []uint{17}},
		{"relates to ticket 99 and Issue #3", []uint{3, 99}},
		{"no references here", nil},
		{"#12 mentioned twice #12", []uint{12}},
	}
	for _, tt := range tests {
		if got := extractReferences(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("extractReferences(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("The printer in the main office will not print after the update", 5)
	want := []string{"printer", "main", "office", "print", "update"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}

	// short tokens, stop words and duplicates are dropped
	got = extractKeywords("please help with VPN vpn VPN issue", 5)
	if !reflect.DeepEqual(got, []string(nil)) {
		t.Fatalf("keywords = %v, want none", got)
	}

	got = extractKeywords("database connection database timeout connection", 2)
	want = []string{"database", "connection"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	if got := JaccardSimilarity("printer offline", "printer offline"); got != 1 {
		t.Fatalf("identical texts = %v, want 1", got)
	}
	if got := JaccardSimilarity("printer offline", "database timeout"); got != 0 {
		t.Fatalf("disjoint texts = %v, want 0", got)
	}
	if got := JaccardSimilarity("", "anything"); got != 0 {
		t.Fatalf("empty text = %v, want 0", got)
	}
	// {a,b,c} vs {b,c,d}: 2 shared of 4 total
	if got := JaccardSimilarity("alpha beta gamma", "beta gamma delta"); got != 0.5 {
		t.Fatalf("partial overlap = %v, want 0.5", got)
	}
}
