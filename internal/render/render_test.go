package render

import (
	"strings"
	"testing"
)

func TestBuildHTMLConvertsMarkdown(t *testing.T) {
	memo := "# MEMORANDUM\n\n## Issue\n\nWhether the termination was retaliatory.\n\n| Case | Score |\n|------|-------|\n| Smith v. Jones | 90 |\n"
	out, err := buildHTML(memo)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(out, "<h1") || !strings.Contains(out, "MEMORANDUM") {
		t.Fatalf("heading not rendered: %s", out)
	}
	if !strings.Contains(out, "<table>") {
		t.Fatalf("GFM table not rendered: %s", out)
	}
	if !strings.Contains(out, "<style>") {
		t.Fatalf("style block missing: %s", out)
	}
}

func TestBuildHTMLPlainTextPassesThrough(t *testing.T) {
	out, err := buildHTML("just a plain paragraph")
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(out, "<p>just a plain paragraph</p>") {
		t.Fatalf("paragraph not rendered: %s", out)
	}
}
