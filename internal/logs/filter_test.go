package logs

import "testing"

func TestFilterJSONLines(t *testing.T) {
	info := `{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"preview generated","component":"preview","content_id":42}`
	debug := `{"ts":"2026-01-01T00:00:00Z","level":"debug","msg":"requesting preview render","component":"preview","content_id":7}`

	if !(Filter{}).Match(debug) {
		t.Fatal("empty filter should match everything")
	}
	if !(Filter{ContentID: 42}).Match(info) || (Filter{ContentID: 42}).Match(debug) {
		t.Fatal("content id filter mismatch")
	}
	if (Filter{MinLevel: "info"}).Match(debug) || !(Filter{MinLevel: "info"}).Match(info) {
		t.Fatal("level filter mismatch")
	}
	if (Filter{Component: "daemon"}).Match(info) {
		t.Fatal("component filter should reject other components")
	}
}

func TestFilterConsoleLines(t *testing.T) {
	line := "2026-01-01T00:00:00Z WARN preview: [#42] discarding preview image size=800x360"
	if !(Filter{ContentID: 42, Component: "preview", MinLevel: "warn"}).Match(line) {
		t.Fatalf("expected match for %q", line)
	}
	if (Filter{MinLevel: "error"}).Match(line) {
		t.Fatal("warn line should not pass error filter")
	}
	if (Filter{ContentID: 1}).Match("2026-01-01T00:00:00Z INFO daemon: api listening") {
		t.Fatal("line without content id should not match")
	}
}
