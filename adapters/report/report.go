// Package report renders run summaries and power curves as a markdown
// document and converts it to HTML.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gocoalesce/domain/simulation"
	"gocoalesce/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Report collects everything one document presents
type Report struct {
	Title  string
	Runs   []*simulation.RunSummary
	Tests  []*simulation.TestSummary
	Curves []*simulation.PowerCurve
}

// Markdown renders the report as GitHub-style markdown tables
func (r *Report) Markdown() []byte {
	var b bytes.Buffer
	title := r.Title
	if title == "" {
		title = "Site-pattern estimator study"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(r.Runs) > 0 {
		b.WriteString("## Coverage\n\n")
		b.WriteString("| tau0 | tau1 | theta | n | replicates | param | mean | bias | sd | rmse | calibration | mean width | coverage | usable | excluded |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|---|---|---|\n")
		for _, run := range r.Runs {
			p := run.Settings.Params
			for _, ps := range []simulation.ParameterSummary{run.Tau0, run.Tau1} {
				fmt.Fprintf(&b, "| %g | %g | %g | %d | %d | %s | %.6g | %.3g | %.3g | %.3g | %.3f | %.3g | %.4f | %d | %d |\n",
					p.Tau0, p.Tau1, p.Theta, run.Settings.Trials, run.Settings.Replicates, ps.Parameter,
					ps.Mean, ps.Bias, ps.StdDev, ps.RMSE, ps.CalibrationRatio, ps.MeanIntervalWidth,
					ps.Coverage, ps.Usable, ps.Excluded)
			}
		}
		b.WriteString("\n")
	}

	if len(r.Tests) > 0 {
		b.WriteString("## Tests of tau1 = 0\n\n")
		b.WriteString("| tau0 | tau1 | theta | n | replicates | rejection rate | mean Z | sd Z | usable | excluded |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
		for _, t := range r.Tests {
			p := t.Settings.Params()
			fmt.Fprintf(&b, "| %g | %g | %g | %d | %d | %.4f | %.3f | %.3f | %d | %d |\n",
				p.Tau0, p.Tau1, p.Theta, t.Settings.Trials, t.Settings.Replicates,
				t.RejectionRate, t.MeanZ, t.StdDevZ, t.Usable, t.Excluded)
		}
		b.WriteString("\n")
	}

	for _, c := range r.Curves {
		fmt.Fprintf(&b, "## Power, tau0 = %g, theta = %g, n = %d\n\n", c.Tau0, c.Theta, c.Trials)
		b.WriteString("| tau1 | power | usable | excluded |\n|---|---|---|---|\n")
		for _, p := range c.Points {
			fmt.Fprintf(&b, "| %g | %.4f | %d | %d |\n", p.Tau1, p.Power, p.Usable, p.Excluded)
		}
		if !c.Monotone(0.02) {
			b.WriteString("\n_Power is not monotone in |tau1| at this replicate count._\n")
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

// HTML converts the markdown rendering to a standalone HTML fragment
func (r *Report) HTML() []byte {
	return ToHTML(r.Markdown())
}

// ToHTML renders markdown with table support
func ToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.ToHTML(md, p, renderer)
}

// WriteFiles writes <name>.md and <name>.html into dir and returns both paths
func (r *Report) WriteFiles(dir, name string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.ExportFailed("report", err)
	}
	md := r.Markdown()
	mdPath := filepath.Join(dir, name+".md")
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return "", "", errors.ExportFailed("markdown report", err)
	}
	htmlPath := filepath.Join(dir, name+".html")
	if err := os.WriteFile(htmlPath, ToHTML(md), 0o644); err != nil {
		return "", "", errors.ExportFailed("html report", err)
	}
	return mdPath, htmlPath, nil
}
