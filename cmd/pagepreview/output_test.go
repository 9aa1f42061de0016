package main

import (
	"bytes"
	"strings"
	"testing"

	"pagepreview/internal/preflight"
)

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf}
	p.status("Runner", statusOK, "Running")
	p.check(preflight.Result{Name: "Site URL", Passed: true, Warning: true, Detail: "local"})
	p.check(preflight.Result{Name: "Render service", Detail: "unreachable"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"  Runner:              [OK] Running",
		"  Site URL:            [WARN] local",
		"  Render service:      [ERROR] unreachable",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPrinterTablePadsShortRows(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf}
	p.table([]string{"ID", "Name", "URL"}, [][]string{{"1", "main"}}, alignRight)
	out := buf.String()
	if !strings.Contains(out, "main") || !strings.Contains(out, "URL") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("table output should end with a newline")
	}
}

func TestPrinterLogLineWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf}
	line := "2026-01-01T00:00:00Z ERROR preview: failed"
	p.logLine(line)
	if buf.String() != line+"\n" {
		t.Fatalf("expected plain line, got %q", buf.String())
	}
}
