package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// NoDataMessage is shown when a selected county has no dataset record.
const NoDataMessage = "No data available for this county."

// RankedFactor is one entry of a detail panel's factor ranking.
type RankedFactor struct {
	Rank    int     `json:"rank"`
	Code    string  `json:"code"`
	Label   string  `json:"label"`
	Display string  `json:"display"`
	Value   float64 `json:"value"`
}

// Detail is the rendered content of the county detail panel.
type Detail struct {
	Key       JoinKey        `json:"key,omitempty"`
	Found     bool           `json:"found"`
	Title     string         `json:"title"`
	Factors   []RankedFactor `json:"factors,omitempty"`
	Predicted string         `json:"predicted,omitempty"`
	Actual    string         `json:"actual,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// RankFactors orders a record's non-empty factor slots by descending absolute
// contribution. The sort is stable, so ties keep slot order.
func RankFactors(factors []FactorContribution) []FactorContribution {
	ranked := make([]FactorContribution, 0, len(factors))
	for _, f := range factors {
		if f.Code != "" {
			ranked = append(ranked, f)
		}
	}
	slices.SortStableFunc(ranked, func(a, b FactorContribution) int {
		av, bv := math.Abs(a.Value), math.Abs(b.Value)
		switch {
		case av > bv:
			return -1
		case av < bv:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// RenderDetail builds the detail panel for a county. A nil record yields the
// explicit no-data state titled with fallbackTitle.
func RenderDetail(record *CountyRecord, labels *LabelTable, fallbackTitle string) Detail {
	if record == nil {
		title := fallbackTitle
		if title == "" {
			title = "Unknown county"
		}
		return Detail{Found: false, Title: title, Message: NoDataMessage}
	}

	ranked := RankFactors(record.Factors[:])
	out := make([]RankedFactor, len(ranked))
	for i, f := range ranked {
		out[i] = RankedFactor{
			Rank:    i + 1,
			Code:    f.Code,
			Label:   labels.Resolve(f.Code),
			Display: labels.Display(f.Code),
			Value:   f.Value,
		}
	}

	return Detail{
		Key:       record.Key,
		Found:     true,
		Title:     fmt.Sprintf("%s, %s", record.County, record.State),
		Factors:   out,
		Predicted: formatOutcome(record.Predicted),
		Actual:    formatOutcome(record.Actual),
	}
}

// Markdown renders the panel as a markdown document.
func (d Detail) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", escapeMarkdown(d.Title))
	if !d.Found {
		b.WriteString(escapeMarkdown(d.Message))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("**Top factors:**\n\n")
	for _, f := range d.Factors {
		if f.Label != f.Code && f.Label != "" {
			fmt.Fprintf(&b, "%d. **%s** — %s (%s)\n", f.Rank, escapeMarkdown(f.Code), escapeMarkdown(f.Label), formatContribution(f.Value))
			continue
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", f.Rank, escapeMarkdown(f.Code), formatContribution(f.Value))
	}
	fmt.Fprintf(&b, "\n**Predicted:** %s  \n**Actual:** %s\n", d.Predicted, d.Actual)
	return b.String()
}

// HTML renders the panel markdown to an HTML fragment. Raw HTML in dataset
// fields is not passed through.
func (d Detail) HTML() string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(d.Markdown()), p, r))
}

func formatOutcome(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatContribution(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
