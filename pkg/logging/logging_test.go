package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", "text", &buf)

	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "json", &buf)
	log.Info("hello", "k", "v")

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("not json output: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	// must not panic and must swallow everything
	Discard().Error("nobody hears this")
}
