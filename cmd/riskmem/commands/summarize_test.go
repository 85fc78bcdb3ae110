// ABOUTME: Tests for the summarize command's report file handling
// ABOUTME: Covers writing, overwriting and the --out flag wiring
package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary_report.txt")

	if err := saveSummary(path, "Payments: card data crosses an untrusted network.\n\n"); err != nil {
		t.Fatalf("saveSummary() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "Payments: card data crosses an untrusted network.\n" {
		t.Errorf("saved = %q", data)
	}

	// an edited report replaces the previous one
	if err := saveSummary(path, "Edited by the analyst"); err != nil {
		t.Fatalf("saveSummary() error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "Edited by the analyst\n" {
		t.Errorf("saved after edit = %q", data)
	}

	if err := saveSummary(filepath.Join(t.TempDir(), "missing", "report.txt"), "x"); err == nil {
		t.Error("saveSummary() into a missing directory should fail")
	}
}

func TestSummarizeCmd_OutFlag(t *testing.T) {
	cmd := NewSummarizeCmd()
	flag := cmd.Flags().Lookup("out")
	if flag == nil {
		t.Fatal("summarize has no --out flag")
	}
	if flag.Shorthand != "o" {
		t.Errorf("--out shorthand = %q, want o", flag.Shorthand)
	}
}
