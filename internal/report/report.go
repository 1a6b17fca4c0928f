// Package report renders analysis results.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"kasiski/internal/kasiski"
	"kasiski/internal/store"
)

// ReportFormat specifies the output format for analysis reports.
type ReportFormat string

const (
	FormatKey      ReportFormat = "key"
	FormatText     ReportFormat = "text"
	FormatJSON     ReportFormat = "json"
	FormatYAML     ReportFormat = "yaml"
	FormatMarkdown ReportFormat = "markdown"
)

// Formats lists the accepted format names.
func Formats() []ReportFormat {
	return []ReportFormat{FormatKey, FormatText, FormatJSON, FormatYAML, FormatMarkdown}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (ReportFormat, error) {
	f := ReportFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		return FormatMarkdown, nil
	}
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// ReportGenerator renders results in one format.
type ReportGenerator struct {
	format  ReportFormat
	verbose bool
	top     int
}

// NewReportGenerator creates a new report generator.
func NewReportGenerator(format ReportFormat) *ReportGenerator {
	return &ReportGenerator{format: format, top: 5}
}

// WithVerbose adds per-coset detail and the strongest prime tallies.
func (g *ReportGenerator) WithVerbose(verbose bool) *ReportGenerator {
	g.verbose = verbose
	return g
}

// Format returns the configured format.
func (g *ReportGenerator) Format() ReportFormat {
	return g.format
}

// Generate writes the result in the configured format.
func (g *ReportGenerator) Generate(res *kasiski.Result, w io.Writer) error {
	switch g.format {
	case FormatKey, "":
		_, err := fmt.Fprintln(w, res.Key)
		return err
	case FormatText:
		return g.generateText(res, w)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	case FormatYAML:
		return g.generateYAML(res, w)
	case FormatMarkdown:
		return g.generateMarkdown(res, w)
	default:
		return fmt.Errorf("unknown format: %s", g.format)
	}
}

func (g *ReportGenerator) generateYAML(v any, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

func (g *ReportGenerator) generateText(res *kasiski.Result, w io.Writer) error {
	fmt.Fprintf(w, "Key:             %s\n", res.Key)
	fmt.Fprintf(w, "Key length:      %d\n", res.KeyLength)
	fmt.Fprintf(w, "Table:           %s\n", res.Table)
	fmt.Fprintf(w, "Letters:         %d\n", res.Letters)
	fmt.Fprintf(w, "Repeat events:   %d (%d distinct)\n", res.RepeatEvents, res.DistinctRepeats)
	if res.Degenerate {
		fmt.Fprintf(w, "Warning:         %s\n", kasiski.ErrDegenerateKeyLength)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Factors ---")
	if len(res.Factors) == 0 {
		fmt.Fprintln(w, "  (none above threshold)")
	}
	for _, f := range res.Factors {
		fmt.Fprintf(w, "  %d^%d  votes %d/%d (%.1f%%)  total %d\n",
			f.Prime, f.Exponent, f.Votes, res.RepeatEvents, f.Ratio*100, f.Total)
	}

	if g.verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "--- Strongest primes (threshold %.2f) ---\n", res.Threshold)
		for _, t := range res.TopTallies(g.top) {
			fmt.Fprintf(w, "  %-6d votes %-6d ratio %.3f\n", t.Prime, t.Votes, t.Ratio(res.RepeatEvents))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Cosets ---")
		for _, s := range res.Shifts {
			fmt.Fprintf(w, "  [%d] %s  shift %-2d letters %-6d distance %.5f\n",
				s.Coset, s.Letter, s.Shift, s.Size, s.Distance)
		}
	}
	return nil
}

const markdownTemplate = `# Kasiski Analysis

| Property | Value |
|----------|-------|
| **Key** | ` + "`{{.Key}}`" + ` |
| **Key length** | {{.KeyLength}} |
| **Table** | {{.Table}} |
| **Letters** | {{.Letters}} |
| **Repeat events** | {{.RepeatEvents}} ({{.DistinctRepeats}} distinct) |
| **Threshold** | {{.Threshold}} |
{{if .Degenerate}}
> No prime cleared the vote threshold. The key length defaulted to 1.
{{end}}
## Factors

| Prime | Exponent | Votes | Ratio |
|-------|----------|-------|-------|
{{range .Factors}}| {{.Prime}} | {{.Exponent}} | {{.Votes}} | {{percent .Ratio}} |
{{end}}{{if .Verbose}}
## Cosets

| Position | Letter | Shift | Letters | Distance |
|----------|--------|-------|---------|----------|
{{range .Shifts}}| {{.Coset}} | {{.Letter}} | {{.Shift}} | {{.Size}} | {{printf "%.5f" .Distance}} |
{{end}}{{end}}`

func (g *ReportGenerator) generateMarkdown(res *kasiski.Result, w io.Writer) error {
	funcMap := template.FuncMap{
		"percent": func(r float64) string { return fmt.Sprintf("%.1f%%", r*100) },
	}
	t, err := template.New("report").Funcs(funcMap).Parse(markdownTemplate)
	if err != nil {
		return err
	}

	view := struct {
		*kasiski.Result
		Verbose bool
	}{res, g.verbose}
	return t.Execute(w, view)
}

// RunFactor is a stored factor in serialized form.
type RunFactor struct {
	Prime    int `json:"prime" yaml:"prime"`
	Exponent int `json:"exponent" yaml:"exponent"`
	Votes    int `json:"votes" yaml:"votes"`
	Total    int `json:"total" yaml:"total"`
}

// RunView is the serialized form of a stored run.
type RunView struct {
	ID           int64       `json:"id" yaml:"id"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	Source       string      `json:"source" yaml:"source"`
	Path         string      `json:"path,omitempty" yaml:"path,omitempty"`
	Table        string      `json:"table" yaml:"table"`
	Fingerprint  string      `json:"fingerprint" yaml:"fingerprint"`
	Letters      int         `json:"letters" yaml:"letters"`
	RepeatEvents int         `json:"repeat_events" yaml:"repeat_events"`
	KeyLength    int         `json:"key_length" yaml:"key_length"`
	Key          string      `json:"key" yaml:"key"`
	Degenerate   bool        `json:"degenerate" yaml:"degenerate"`
	Threshold    float64     `json:"threshold" yaml:"threshold"`
	MaxPrime     int         `json:"max_prime" yaml:"max_prime"`
	Factors      []RunFactor `json:"factors,omitempty" yaml:"factors,omitempty"`
	// Intact reports whether the stored record hash still matches.
	Intact bool `json:"intact" yaml:"intact"`
}

// NewRunView converts a stored run.
func NewRunView(r store.Run) RunView {
	v := RunView{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt.UTC(),
		Source:       r.Source,
		Path:         r.Path,
		Table:        r.Table,
		Fingerprint:  hex.EncodeToString(r.Fingerprint[:]),
		Letters:      r.Letters,
		RepeatEvents: r.RepeatEvents,
		KeyLength:    r.KeyLength,
		Key:          r.Key,
		Degenerate:   r.Degenerate,
		Threshold:    r.Threshold,
		MaxPrime:     r.MaxPrime,
		Intact:       store.VerifyRunIntegrity(&r) == nil,
	}
	for _, f := range r.Factors {
		v.Factors = append(v.Factors, RunFactor(f))
	}
	return v
}

// GenerateRun writes one stored run in detail.
func (g *ReportGenerator) GenerateRun(r store.Run, w io.Writer) error {
	v := NewRunView(r)
	switch g.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		return g.generateYAML(v, w)
	case FormatKey:
		_, err := fmt.Fprintln(w, v.Key)
		return err
	}

	integrity := "ok"
	if !v.Intact {
		integrity = "FAILED"
	}
	fmt.Fprintf(w, "Run:             %d\n", v.ID)
	fmt.Fprintf(w, "Created:         %s\n", v.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Source:          %s\n", v.Source)
	if v.Path != "" {
		fmt.Fprintf(w, "Path:            %s\n", v.Path)
	}
	fmt.Fprintf(w, "Table:           %s\n", v.Table)
	fmt.Fprintf(w, "Fingerprint:     %s\n", v.Fingerprint)
	fmt.Fprintf(w, "Letters:         %d\n", v.Letters)
	fmt.Fprintf(w, "Repeat events:   %d\n", v.RepeatEvents)
	fmt.Fprintf(w, "Key length:      %d\n", v.KeyLength)
	fmt.Fprintf(w, "Key:             %s\n", v.Key)
	fmt.Fprintf(w, "Threshold:       %.2f (primes up to %d)\n", v.Threshold, v.MaxPrime)
	fmt.Fprintf(w, "Integrity:       %s\n", integrity)
	if len(v.Factors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Factors ---")
		for _, f := range v.Factors {
			fmt.Fprintf(w, "  %d^%d  votes %d  total %d\n", f.Prime, f.Exponent, f.Votes, f.Total)
		}
	}
	return nil
}

// GenerateRuns writes a run listing. Key and markdown formats fall back to
// the text table.
func (g *ReportGenerator) GenerateRuns(runs []store.Run, w io.Writer) error {
	views := make([]RunView, len(runs))
	for i, r := range runs {
		views[i] = NewRunView(r)
	}

	switch g.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	case FormatYAML:
		return g.generateYAML(views, w)
	}

	fmt.Fprintf(w, "%-6s %-20s %-8s %-11s %-6s %s\n", "ID", "CREATED", "SOURCE", "TABLE", "LEN", "KEY")
	for _, v := range views {
		fmt.Fprintf(w, "%-6d %-20s %-8s %-11s %-6d %s\n",
			v.ID, v.CreatedAt.Format(time.DateTime), v.Source, v.Table, v.KeyLength, v.Key)
	}
	return nil
}
