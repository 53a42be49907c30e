package wordpiece

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// vocab line order assigns ids: [PAD]=0, [UNK]=1, [CLS]=2, [SEP]=3, ...
var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"quick", "brown", "fox", "##es", "jump", "##ing", ",",
}

func loadTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tok, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestLoadVocab(t *testing.T) {
	tok := loadTestTokenizer(t)
	if tok.VocabSize() != len(testVocab) {
		t.Errorf("VocabSize() = %d, want %d", tok.VocabSize(), len(testVocab))
	}
	if tok.clsID != 2 || tok.sepID != 3 || tok.padID != 0 || tok.unkID != 1 {
		t.Errorf("special ids = cls:%d sep:%d pad:%d unk:%d", tok.clsID, tok.sepID, tok.padID, tok.unkID)
	}
}

func TestLoadMissingVocab(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("missing vocabulary should fail")
	}
}

func TestTokenize(t *testing.T) {
	tok := loadTestTokenizer(t)
	tests := []struct {
		input string
		want  []string
	}{
		{"quick brown", []string{"quick", "brown"}},
		{"Quick BROWN", []string{"quick", "brown"}},
		{"foxes", []string{"fox", "##es"}},
		{"jumping", []string{"jump", "##ing"}},
		{"quick, brown", []string{"quick", ",", "brown"}},
		{"zebra", []string{"[UNK]"}},
	}
	for _, tt := range tests {
		got := tok.Tokenize(tt.input)
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEncodePairLayout(t *testing.T) {
	tok := loadTestTokenizer(t)
	maxLen := 10
	ids, mask := tok.EncodePair("quick", "brown fox", maxLen)
	if len(ids) != maxLen || len(mask) != maxLen {
		t.Fatalf("lengths = %d/%d, want %d", len(ids), len(mask), maxLen)
	}
	// [CLS] quick [SEP] brown fox [SEP] then padding
	want := []int64{2, 4, 3, 5, 6, 3, 0, 0, 0, 0}
	wantMask := []int64{1, 1, 1, 1, 1, 1, 0, 0, 0, 0}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
		if mask[i] != wantMask[i] {
			t.Fatalf("mask = %v, want %v", mask, wantMask)
		}
	}
}

func TestEncodePairTruncatesDocument(t *testing.T) {
	tok := loadTestTokenizer(t)
	maxLen := 6
	doc := strings.Repeat("brown ", 50)
	ids, mask := tok.EncodePair("quick", doc, maxLen)
	if len(ids) != maxLen {
		t.Fatalf("len(ids) = %d, want %d", len(ids), maxLen)
	}
	// [CLS] quick [SEP] brown brown [SEP]: query survives, document shrinks.
	want := []int64{2, 4, 3, 5, 5, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
		if mask[i] != 1 {
			t.Fatalf("mask = %v, want all ones", mask)
		}
	}
}

func TestEncodePairLongQuery(t *testing.T) {
	tok := loadTestTokenizer(t)
	maxLen := 5
	query := strings.Repeat("quick ", 20)
	ids, _ := tok.EncodePair(query, "brown", maxLen)
	if len(ids) != maxLen {
		t.Fatalf("len(ids) = %d, want %d", len(ids), maxLen)
	}
	// Query fills the window; the document gets no slots.
	want := []int64{2, 4, 4, 3, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
