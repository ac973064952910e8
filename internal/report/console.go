// Package report prints human-readable progress of an export run.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/model"
)

const ruleWidth = 50

// Console writes status lines for every model and a closing summary.
// Styling is dropped automatically when out is not a terminal.
type Console struct {
	out     io.Writer
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	mu      sync.Mutex
}

// NewConsole creates a console reporter writing to out.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)

	return &Console{
		out:     out,
		title:   r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

var _ model.Reporter = (*Console)(nil)

// Banner prints the tool header.
func (c *Console) Banner(format string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.println(c.title.Render(fmt.Sprintf("YOLO model %s export tool", formatLabel(backend.Format(format)))))
	c.println(fmt.Sprintf("This tool downloads YOLO models and converts them to %s format.", formatLabel(backend.Format(format))))
	c.println("")
}

// Begin implements model.Reporter.
func (c *Console) Begin(runID string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if total == 0 {
		c.println(c.muted.Render("No enabled models in the configuration."))
	}
}

// ModelStarted implements model.Reporter.
func (c *Console) ModelStarted(r *model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.println("")
	c.println(rule())
	c.println(c.title.Render("Processing: " + r.ID))
	c.println(rule())
}

// ModelAcquired implements model.Reporter.
func (c *Console) ModelAcquired(r *model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := "✓ Model loaded: " + r.ID
	if r.Cached {
		line += c.muted.Render(" (cached)")
	}
	c.println(c.success.Render(line))
}

// ModelExported implements model.Reporter.
func (c *Console) ModelExported(r *model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.println(c.success.Render(fmt.Sprintf("✓ %s export complete!", formatLabel(r.Format))))
	c.println("  File location: " + r.ExportPath)

	var details []string
	if r.SizeBytes > 0 {
		details = append(details, humanize.Bytes(uint64(r.SizeBytes)))
	}
	if r.ONNX != nil {
		if opset := r.ONNX.DefaultOpset(); opset > 0 {
			details = append(details, fmt.Sprintf("opset %d", opset))
		}
		if r.ONNX.ProducerName != "" {
			details = append(details, "producer "+strings.TrimSpace(r.ONNX.ProducerName+" "+r.ONNX.ProducerVersion))
		}
	}
	if len(details) > 0 {
		c.println(c.muted.Render("  " + strings.Join(details, ", ")))
	}

	if r.InstallPath != "" {
		c.println("  Installed to: " + r.InstallPath)
	}
}

// ModelFailed implements model.Reporter.
func (c *Console) ModelFailed(r *model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Err == nil {
		c.println(c.failure.Render("✗ Error: unknown failure"))
		return
	}

	c.println(c.failure.Render(fmt.Sprintf("✗ Error (%s): %v", r.Err.Stage, r.Err.Err)))
}

// Finish implements model.Reporter. The closing instruction is printed
// whatever the outcome of the run.
func (c *Console) Finish(s *model.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.println("")
	c.println(rule())

	if s.InstallDir != "" {
		c.println(c.title.Render("Done! Exported models were copied to " + s.InstallDir))
	} else {
		c.println(c.title.Render(fmt.Sprintf("Done! Copy the generated %s into the application folder.", artifactLabel(s))))
		c.println("Recommended location: <executable>/Models/")
	}

	counts := fmt.Sprintf("Succeeded: %d, failed: %d", s.Succeeded(), s.Failed())
	if skipped := s.Count(model.StatusSkipped); skipped > 0 {
		counts += fmt.Sprintf(", skipped: %d", skipped)
	}
	if s.Disabled > 0 {
		counts += fmt.Sprintf(", disabled: %d", s.Disabled)
	}
	counts += fmt.Sprintf(" (run %s)", s.RunID)

	if s.OK() {
		c.println(c.success.Render(counts))
	} else {
		c.println(c.failure.Render(counts))
	}

	if s.Canceled {
		c.println(c.failure.Render("Run was interrupted before all models were processed."))
	}

	c.println(rule())
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func rule() string {
	return strings.Repeat("=", ruleWidth)
}

func formatLabel(f backend.Format) string {
	switch f {
	case backend.FormatONNX:
		return "ONNX"
	case backend.FormatTorchScript:
		return "TorchScript"
	case backend.FormatOpenVINO:
		return "OpenVINO"
	default:
		return strings.ToUpper(string(f))
	}
}

// artifactLabel names what the operator has to copy, e.g. ".onnx file".
func artifactLabel(s *model.Summary) string {
	format := backend.FormatONNX
	for i, r := range s.Results {
		if i > 0 && r.Format != format {
			return "model files"
		}
		format = r.Format
	}

	if format == backend.FormatOpenVINO {
		return "OpenVINO model folder"
	}
	return format.Suffix() + " file"
}
