package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"life.tape/internal/models"
	"life.tape/internal/timeline"
)

// PrettyPrint renders entries for the terminal.
type PrettyPrint struct {
	Out    io.Writer
	ShowID bool
	Now    func() time.Time
}

func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.Out, title)
	_, _ = c.Fprintf(pp.Out, " - %s\n", timeline.CountLabel(count))
}

// Timeline prints entries grouped under their date labels.
func (pp *PrettyPrint) Timeline(entries []models.Entry) {
	if len(entries) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.Out, " none\n\n")
		return
	}

	now := time.Now
	if pp.Now != nil {
		now = pp.Now
	}
	label := color.New(color.Bold)
	dark := color.New(color.FgMagenta)
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)

	for _, g := range timeline.GroupByDate(entries, now()) {
		_, _ = label.Fprintln(pp.Out, g.Label)

		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 60
		for _, e := range g.Entries {
			row := []interface{}{}
			if pp.ShowID {
				row = append(row, y.Sprint(e.ID))
			}
			title := e.Title
			if e.IsDarkSide {
				title = dark.Sprint(title)
			}
			row = append(row,
				timeline.FormatTime(e.Created().In(now().Location())),
				title,
				tagLabel(e.Tag),
				timeline.FormatDuration(e.Duration),
			)
			tbl.AddRow(row...)
		}
		_, _ = fmt.Fprintln(pp.Out, tbl)
		_, _ = fmt.Fprintln(pp.Out)
	}
}

// Entry prints the detail view of one entry.
func (pp *PrettyPrint) Entry(e models.Entry) {
	t := color.New(color.Bold)
	f := color.New(color.Faint)

	_, _ = t.Fprintln(pp.Out, e.Title)

	created := e.Created()
	if pp.Now != nil {
		created = created.In(pp.Now().Location())
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(f.Sprint("id"), e.ID)
	tbl.AddRow(f.Sprint("recorded"), created.Format("Monday, Jan 2, 2006")+" at "+timeline.FormatTime(created))
	tbl.AddRow(f.Sprint("length"), timeline.FormatDuration(e.Duration))
	if e.Tag != "" {
		tbl.AddRow(f.Sprint("tag"), tagLabel(e.Tag))
	}
	if e.IsDarkSide {
		tbl.AddRow(f.Sprint("side"), "Dark Side")
	}
	if e.AudioURI != "" {
		tbl.AddRow(f.Sprint("audio"), e.AudioURI)
	}
	_, _ = fmt.Fprintln(pp.Out, tbl)
	_, _ = fmt.Fprintln(pp.Out)

	body := uitable.New()
	body.MaxColWidth = 80
	body.Wrap = true
	body.AddRow(e.Transcript)
	_, _ = fmt.Fprintln(pp.Out, body)
}

// Tags prints one tag per line.
func (pp *PrettyPrint) Tags(tags []string) {
	if len(tags) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprintln(pp.Out, " no tags yet")
		return
	}
	for _, t := range tags {
		_, _ = fmt.Fprintln(pp.Out, tagLabel(t))
	}
}

func tagLabel(tag string) string {
	if tag == "" {
		return ""
	}
	return "#" + strings.ToLower(tag)
}
