// Package mock produces stand-in replies, audio and transcripts whenever a real
// provider is unconfigured or fails.
package mock

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Provider is the provider name reported when mock output is used.
const Provider = "mock"

// SilentAudio is a minimal valid WAV file with no samples, encoded as a data URI.
const SilentAudio = "data:audio/wav;base64,UklGRiQAAABXQVZFZm10IBAAAAABAAEAQB8AAEAfAAABAAgAZGF0YQAAAAA="

const (
	placeholderTranscript = "（模擬語音）你好，我想練習廣東話"
	placeholderConfidence = 0.5

	feedbackSpoken = "（模擬）聲調不錯，試下放慢少少再講一次。"
	feedbackEmpty  = "請試下講一句你想練習嘅句子。"
	promptToSpeak  = "你可以先講講你想練習嘅內容。"
)

// Openers are the polite acknowledgements a mock reply starts with.
var Openers = []string{
	"多謝分享！",
	"明白喇！",
	"好嘢！",
	"正啊！",
}

// FollowUps are the conversation seeds a mock reply ends with.
var FollowUps = []string{
	"你講得好流利，繼續分享多啲！",
	"可以再講詳細啲嗎？",
	"明白，你仲有咩想法？",
	"不如講下你嘅日常？",
	"好啊，我哋可以轉去另一個話題。",
}

// Chooser picks an index in [0, n). *rand.Rand satisfies it.
type Chooser interface {
	IntN(n int) int
}

// Responder builds mock output. It is safe for concurrent use.
type Responder struct {
	mu     sync.Mutex
	choose Chooser
}

// NewResponder returns a Responder drawing from choose. A nil Chooser seeds a
// PCG source from the current time.
func NewResponder(choose Chooser) *Responder {
	if choose == nil {
		seed := uint64(time.Now().UnixNano())
		choose = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Responder{choose: choose}
}

// Reply composes an opener, an echo of the learner's text, a scenario hint and a follow-up seed.
func (r *Responder) Reply(userText, scenario string) string {
	r.mu.Lock()
	opener := Openers[r.choose.IntN(len(Openers))]
	seed := FollowUps[r.choose.IntN(len(FollowUps))]
	r.mu.Unlock()

	echo := promptToSpeak
	if text := strings.TrimSpace(userText); text != "" {
		echo = fmt.Sprintf("你啱啱講：「%s」", text)
	}

	parts := []string{opener, echo}
	if scenario = strings.TrimSpace(scenario); scenario != "" {
		parts = append(parts, fmt.Sprintf("（情景：%s）", scenario))
	}
	parts = append(parts, seed)

	return strings.Join(parts, " ")
}

// Feedback returns the fixed encouragement used when no critique can be generated.
func (r *Responder) Feedback(userText string) string {
	if strings.TrimSpace(userText) == "" {
		return feedbackEmpty
	}
	return feedbackSpoken
}

// Audio returns the silent audio payload.
func (r *Responder) Audio() string {
	return SilentAudio
}

// Transcript returns the placeholder recognition result.
func (r *Responder) Transcript() (string, float64) {
	return placeholderTranscript, placeholderConfidence
}
