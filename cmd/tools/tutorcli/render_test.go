package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/analysis/colloquial"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/controller"
)

func TestRendererPrintsOnlyNewMessages(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	snap := controller.Snapshot{
		State:     controller.StateIdle,
		SessionID: "s1",
		Messages:  []controller.Message{{Role: controller.RoleTutor, Text: "你好", Timestamp: at}},
	}
	r.render(snap)

	snap.State = controller.StateProcessing
	snap.Messages = append(snap.Messages, controller.Message{
		Role:        controller.RoleUser,
		Text:        "我的",
		Timestamp:   at,
		Corrections: []colloquial.Correction{{Written: "的", Colloquial: "嘅"}},
	})
	r.render(snap)
	r.render(snap)

	out := buf.String()
	if strings.Count(out, "導師：你好") != 1 || strings.Count(out, "我：我的") != 1 {
		t.Fatalf("messages should print once:\n%s", out)
	}
	if !strings.Contains(out, "「的」→「嘅」") {
		t.Fatalf("missing correction:\n%s", out)
	}
	if strings.Count(out, "<PROCESSING>") != 1 {
		t.Fatalf("state should print once:\n%s", out)
	}
}

func TestFileMicrophonePermission(t *testing.T) {
	mic := newFileMicrophone("bogus")
	if p, _ := mic.Permission(context.Background()); p != controller.PermissionPrompt {
		t.Fatalf("unknown permission should default to prompt, got %s", p)
	}
	if p, _ := mic.Request(context.Background()); p != controller.PermissionGranted {
		t.Fatalf("request should grant, got %s", p)
	}

	denied := newFileMicrophone(controller.PermissionDenied)
	if p, _ := denied.Request(context.Background()); p != controller.PermissionDenied {
		t.Fatalf("denied should stay denied, got %s", p)
	}
	if err := denied.Start(context.Background()); err == nil {
		t.Fatal("Start without loaded audio should fail")
	}
}
