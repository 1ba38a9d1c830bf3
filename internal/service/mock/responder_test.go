package mock

import (
	"encoding/base64"
	"math/rand/v2"
	"strings"
	"testing"
)

type fixedChooser struct{ idx int }

func (f fixedChooser) IntN(n int) int { return f.idx % n }

func TestReplyWithFixedChooserIsExact(t *testing.T) {
	r := NewResponder(fixedChooser{idx: 0})

	got := r.Reply("你好", "餐廳點餐 (At the Restaurant)")
	want := "多謝分享！ 你啱啱講：「你好」 （情景：餐廳點餐 (At the Restaurant)） 你講得好流利，繼續分享多啲！"
	if got != want {
		t.Fatalf("Reply() = %q, want %q", got, want)
	}
}

func TestReplyEmptyTextPromptsToSpeak(t *testing.T) {
	r := NewResponder(fixedChooser{idx: 1})

	got := r.Reply("   ", "")
	want := "明白喇！ 你可以先講講你想練習嘅內容。 可以再講詳細啲嗎？"
	if got != want {
		t.Fatalf("Reply() = %q, want %q", got, want)
	}
}

func TestReplyWithSeededSourceHasKnownShape(t *testing.T) {
	r := NewResponder(rand.New(rand.NewPCG(7, 11)))

	for i := 0; i < 20; i++ {
		got := r.Reply("早晨", "")
		if !hasAnyPrefix(got, Openers) {
			t.Fatalf("reply %q does not start with a known opener", got)
		}
		if !hasAnySuffix(got, FollowUps) {
			t.Fatalf("reply %q does not end with a known follow-up", got)
		}
		if !strings.Contains(got, "「早晨」") {
			t.Fatalf("reply %q does not echo the learner", got)
		}
	}
}

func TestNilChooserStillProducesReplies(t *testing.T) {
	if NewResponder(nil).Reply("hi", "") == "" {
		t.Fatal("expected non-empty reply")
	}
}

func TestAudioIsDecodableWav(t *testing.T) {
	r := NewResponder(nil)
	payload := strings.TrimPrefix(r.Audio(), "data:audio/wav;base64,")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if string(raw[:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		t.Fatalf("unexpected header: %q", raw[:12])
	}
}

func TestFeedbackAndTranscriptAreFixed(t *testing.T) {
	r := NewResponder(nil)
	if r.Feedback("你好") == r.Feedback("") {
		t.Fatal("empty text should get a prompt-to-speak feedback")
	}
	text, confidence := r.Transcript()
	if text == "" || confidence != 0.5 {
		t.Fatalf("unexpected transcript: %q %v", text, confidence)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, p := range suffixes {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}
