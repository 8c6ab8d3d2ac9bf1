package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

//go:embed html/report.html
var reportTemplate string

// WriteHTML renders the report document through the embedded template and
// writes report.html into the output directory.
func (g *Generator) WriteHTML(outputDir string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"cell": cellValue,
	}).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}

	path := filepath.Join(outputDir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, &g.doc); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	g.log.Info().Str("path", path).Msg("Saved report")
	return nil
}

// cellValue resolves a dataset column heading against a row map. Literal
// columns are direct keys; measurement columns are "<name> (Min)" style
// headings over a nested Min/Max/Average map.
func cellValue(row map[string]any, column string) any {
	if v, ok := row[column]; ok {
		return v
	}
	for _, suffix := range []string{" (Min)", " (Max)", " (Average)"} {
		base, ok := strings.CutSuffix(column, suffix)
		if !ok {
			continue
		}
		if nested, ok := row[base].(map[string]int); ok {
			return nested[strings.Trim(suffix, " ()")]
		}
	}
	return ""
}
