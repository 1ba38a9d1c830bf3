package colloquial

import (
	"strings"
	"testing"
)

func TestAnalyzeWrittenSentence(t *testing.T) {
	got := Analyze("我們現在去吃飯")

	want := []string{"我哋", "而家", "食"}
	if len(got) != len(want) {
		t.Fatalf("expected %d corrections, got %+v", len(want), got)
	}
	for i, c := range got {
		if c.Colloquial != want[i] {
			t.Fatalf("correction %d: expected %s, got %s", i, want[i], c.Colloquial)
		}
	}
}

func TestAnalyzeLongerMatchMasksShorter(t *testing.T) {
	got := Analyze("他們沒有說")

	if len(got) != 3 {
		t.Fatalf("expected 3 corrections, got %+v", got)
	}
	for _, c := range got {
		if c.Written == "他" {
			t.Fatalf("single-character rule should not match inside 他們: %+v", got)
		}
	}
}

func TestAnalyzeColloquialSentenceIsClean(t *testing.T) {
	cases := []string{"我哋食咗飯未？", "搭的士去啦", "不如一齊去", "", "   "}
	for _, text := range cases {
		if got := Analyze(text); len(got) != 0 {
			t.Errorf("%q: expected no corrections, got %+v", text, got)
		}
	}
}

func TestAnalyzeDeduplicates(t *testing.T) {
	got := Analyze("是是是")
	if len(got) != 1 || got[0].Colloquial != "係" {
		t.Fatalf("expected a single 係 suggestion, got %+v", got)
	}
}

func TestHint(t *testing.T) {
	if Hint(nil, 3) != "" {
		t.Fatal("expected empty hint without corrections")
	}

	hint := Hint(Analyze("他是我的朋友"), 2)
	if !strings.Contains(hint, "「他」→「佢」") || !strings.Contains(hint, "「是」→「係」") {
		t.Fatalf("unexpected hint: %s", hint)
	}
	if strings.Contains(hint, "嘅") {
		t.Fatalf("hint should be limited to two pairs: %s", hint)
	}
}
