package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/ekisa-team/onnxport/internal/catalog"
)

// PrintCatalog writes the supported identifiers, one per line.
func PrintCatalog(out io.Writer, baseURL string) {
	r := lipgloss.NewRenderer(out)
	id := r.NewStyle().Bold(true).Width(14)
	muted := r.NewStyle().Foreground(lipgloss.Color("8"))

	fmt.Fprintln(out, r.NewStyle().Bold(true).Render("Supported models (assets "+catalog.AssetsRelease+")"))
	for _, e := range catalog.All() {
		line := id.Render(e.ID) + e.Description
		if e.Recommended {
			line += " [recommended]"
		}
		fmt.Fprintln(out, line)
		fmt.Fprintln(out, muted.Render("  "+e.URL(baseURL)))
	}
}
