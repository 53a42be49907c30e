package synonym

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSynonyms(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synonyms.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSynonyms(t, `# comment line
car: automobile, vehicle

COVID: coronavirus , SARS-CoV-2
empty:
no-colon-line
`)
	s := Load(path)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	syns := s.Lookup("car")
	if len(syns) != 2 || syns[0] != "automobile" || syns[1] != "vehicle" {
		t.Errorf("Lookup(car) = %v", syns)
	}
	if got := s.Lookup("covid"); len(got) != 2 {
		t.Errorf("heads should lowercase: Lookup(covid) = %v", got)
	}
	if got := s.Lookup("automobile"); got != nil {
		t.Errorf("synonyms are not heads: Lookup(automobile) = %v", got)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "absent.txt"))
	if s.Len() != 0 {
		t.Errorf("missing file should give empty store, got %d heads", s.Len())
	}
	if got := s.Lookup("anything"); got != nil {
		t.Errorf("Lookup on empty store = %v", got)
	}
}

func TestHeadExcludedFromOwnSynonyms(t *testing.T) {
	path := writeSynonyms(t, "car: car, automobile\n")
	s := Load(path)
	syns := s.Lookup("car")
	if len(syns) != 1 || syns[0] != "automobile" {
		t.Errorf("head must not appear in its own synonym list: %v", syns)
	}
}
