package report

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders the run as a table followed by a short manifest.
func Markdown(r *Run) string {
	var b strings.Builder
	b.WriteString("# Price report\n\n")
	found, missing, failed := r.Counts()
	fmt.Fprintf(&b, "%d targets: %d priced, %d without price, %d failed.\n\n", len(r.Entries), found, missing, failed)

	b.WriteString("| Target | Title | Price | Source |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, e := range r.Entries {
		price := e.Price
		if e.Error != "" {
			price = "error: " + e.Error
		} else if price == "" {
			price = "n/a"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(link(e)), cell(e.Title), cell(price), cell(e.Source))
	}

	b.WriteString("\n## Manifest\n\n")
	fmt.Fprintf(&b, "- Run: %s\n", r.ID)
	fmt.Fprintf(&b, "- Version: %s\n", r.Version)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	for i, e := range r.Entries {
		if e.SHA256 == "" {
			continue
		}
		fmt.Fprintf(&b, "%d. %s sha256:%s\n", i+1, e.Target, e.SHA256)
	}
	return b.String()
}

func link(e Entry) string {
	if strings.HasPrefix(e.Target, "http://") || strings.HasPrefix(e.Target, "https://") {
		return "[" + e.Target + "](" + e.Target + ")"
	}
	return e.Target
}

// cell keeps a value from breaking the table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
