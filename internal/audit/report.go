package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityAdvisory Severity = "advisory"
)

// Finding is one audit observation.
type Finding struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Group    string   `json:"group" yaml:"group"`
	Message  string   `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	return f.Group + ": " + f.Message
}

// Report is the outcome of one audit run. Critical and Advisory keep
// discovery order.
type Report struct {
	RunID      string    `json:"runId" yaml:"runId"`
	Network    string    `json:"network" yaml:"network"`
	Contract   string    `json:"contract" yaml:"contract"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	Critical   []Finding `json:"critical" yaml:"critical"`
	Advisory   []Finding `json:"advisory" yaml:"advisory"`
	Notes      []string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	Secure     bool      `json:"secure" yaml:"secure"`
}

// Output formats accepted by Render.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func (r *Report) add(f Finding) {
	switch f.Severity {
	case SeverityCritical:
		r.Critical = append(r.Critical, f)
	default:
		r.Advisory = append(r.Advisory, f)
	}
}

// Render writes the report to w in format.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(r); err != nil {
			return err
		}
		return encoder.Close()
	case FormatTable, "":
		return r.renderTable(w)
	default:
		return fmt.Errorf("unknown report format %q (want %s, %s or %s)", format, FormatTable, FormatJSON, FormatYAML)
	}
}

func (r *Report) renderTable(w io.Writer) error {
	fmt.Fprintf(w, "Security audit %s\n", r.RunID)
	fmt.Fprintf(w, "Network:  %s\n", r.Network)
	fmt.Fprintf(w, "Contract: %s\n\n", r.Contract)

	table := tablewriter.NewWriter(w)
	table.Header("#", "Severity", "Group", "Finding")

	n := 0
	for _, findings := range [][]Finding{r.Critical, r.Advisory} {
		for _, f := range findings {
			n++
			if err := table.Append([]string{strconv.Itoa(n), string(f.Severity), f.Group, f.Message}); err != nil {
				return err
			}
		}
	}
	if n > 0 {
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	for _, note := range r.Notes {
		fmt.Fprintf(w, "- %s\n", note)
	}
	if len(r.Notes) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Critical: %d\nAdvisory: %d\n", len(r.Critical), len(r.Advisory))
	if r.Secure {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "Status: SECURE")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(w, "Status: ISSUES FOUND")
	}
	return nil
}
