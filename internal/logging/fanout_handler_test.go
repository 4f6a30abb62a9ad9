package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Error("expected NoopHandler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected the single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerMirrorsConsoleIntoJSON(t *testing.T) {
	var console, file bytes.Buffer
	level := new(slog.LevelVar)
	h := newFanoutHandler(newConsoleHandler(&console, level, false), newJSONHandler(&file, level, false))
	logger := slog.New(h).With(String(FieldComponent, "sorter"))

	logger.Info("file copied", String(FieldBucket, "txt"))

	if !strings.Contains(console.String(), "INFO sorter: file copied bucket=txt") {
		t.Errorf("unexpected console line %q", console.String())
	}
	if !strings.Contains(file.String(), `"bucket":"txt"`) || !strings.Contains(file.String(), `"component":"sorter"`) {
		t.Errorf("unexpected json line %q", file.String())
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := newFanoutHandler(infoHandler, debugHandler)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected fanout enabled when any handler accepts the level")
	}

	slog.New(h).Debug("directory symlink not followed")
	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug records")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug records")
	}
}

func TestFanoutHandlerWithGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	slog.New(h.WithGroup("walk")).Info("skipped", slog.String("path", "/x"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"walk":{"path":"/x"}`)) {
			t.Errorf("handler %d missing grouped attr: %s", i, buf.String())
		}
	}
}
