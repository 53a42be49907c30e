package trec

import (
	"strings"
	"testing"
)

func TestParseTopics(t *testing.T) {
	input := `<top>
<num> Number: 1 </num>
<title>
coronavirus origin
</title>
<narr> ignored </narr>
</top>

<top>
<num>2</num>
<title>covid vaccine trials</title>
</top>
`
	topics, err := ParseTopics(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(topics))
	}
	if topics[0].ID != "1" || topics[0].Title != "coronavirus origin" {
		t.Errorf("topic 0 = %+v", topics[0])
	}
	if topics[1].ID != "2" || topics[1].Title != "covid vaccine trials" {
		t.Errorf("topic 1 = %+v", topics[1])
	}
}

func TestParseTopicsEmptyInput(t *testing.T) {
	topics, err := ParseTopics(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 0 {
		t.Errorf("got %d topics, want 0", len(topics))
	}
}
