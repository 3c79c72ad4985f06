package gen

import (
	"context"
	"strings"
	"testing"
)

func TestPoemPrompt(t *testing.T) {
	p := PoemPrompt("جرة نابل الشهيرة", "أبو القاسم الشابي")
	if !strings.Contains(p, "جرة نابل الشهيرة") {
		t.Error("prompt missing location name")
	}
	if !strings.Contains(p, "أبو القاسم الشابي") {
		t.Error("prompt missing poet name")
	}
}

func TestMuralPrompt(t *testing.T) {
	p := MuralPrompt("بيت شعر", "سوق البلغة")
	for _, want := range []string{"black and white", "Nabeul", "سوق البلغة", "بيت شعر"} {
		if !strings.Contains(p, want) {
			t.Errorf("mural prompt missing %q", want)
		}
	}
}

func TestNarrationPrompt(t *testing.T) {
	if !strings.HasSuffix(NarrationPrompt("نص"), "نص") {
		t.Error("narration prompt should end with the poem text")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty API key")
	}
}
