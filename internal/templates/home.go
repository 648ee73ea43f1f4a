package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/jjenkins/factbase/internal/service"
)

// HomeData is what the status page shows.
type HomeData struct {
	Sources []service.ScheduleStatus
	Linkage *service.LinkageStatistics
	Errors  []string
}

func Home(data HomeData) templ.Component {
	return Layout("factbase sync status", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		for _, e := range data.Errors {
			fmt.Fprintf(&b, `<p class="failed">%s</p>`, templ.EscapeString(e))
		}
		writeSources(&b, data.Sources)
		if data.Linkage != nil {
			writeLinkage(&b, data.Linkage)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func writeSources(b *strings.Builder, sources []service.ScheduleStatus) {
	b.WriteString(`<h2>Sources</h2><table><thead><tr><th>Source</th><th>Schedule</th><th>State</th>` +
		`<th>Last run</th><th>Next run</th><th>Created</th><th>Updated</th><th>Unchanged</th>` +
		`<th>Errors</th><th>Marker</th></tr></thead><tbody>`)
	for _, s := range sources {
		state, class := string(s.State), string(s.State)
		if s.CurrentlyRunning {
			class = "running"
		}
		schedule := s.Schedule
		if !s.Enabled {
			schedule += " (disabled)"
		}
		fmt.Fprintf(b, `<tr><td>%s</td><td>%s</td><td class="%s">%s</td><td>%s</td><td>%s</td>`,
			templ.EscapeString(string(s.Source)), templ.EscapeString(schedule),
			templ.EscapeString(class), templ.EscapeString(state),
			formatTime(s.LastRunTime), formatTime(s.NextRunTime))
		if st := s.LastStatistics; st != nil {
			fmt.Fprintf(b, `<td>%d</td><td>%d</td><td>%d</td><td>%d</td>`, st.Created, st.Updated, st.Unchanged, st.Errors)
		} else {
			b.WriteString(`<td class="muted" colspan="4">no runs yet</td>`)
		}
		fmt.Fprintf(b, `<td><code>%s</code></td></tr>`, templ.EscapeString(shortMarker(s.Marker)))
	}
	b.WriteString(`</tbody></table>`)
}

func writeLinkage(b *strings.Builder, l *service.LinkageStatistics) {
	fmt.Fprintf(b, `<h2>Agency linkage</h2><p>%d of %d regulations linked (%.1f%%), %d links across %d organizations. `+
		`%d unmatched names.</p>`,
		l.LinkedRegulations, l.TotalRegulations, l.LinkRate*100, l.TotalLinks, l.Organizations, len(l.UnmatchedNames))
	if len(l.TopOrganizations) == 0 {
		return
	}
	b.WriteString(`<table><thead><tr><th>Organization</th><th>Regulations</th></tr></thead><tbody>`)
	for _, o := range l.TopOrganizations {
		fmt.Fprintf(b, `<tr><td>%s</td><td>%d</td></tr>`, templ.EscapeString(o.Name), o.Regulations)
	}
	b.WriteString(`</tbody></table>`)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return `<span class="muted">never</span>`
	}
	return t.UTC().Format("2006-01-02 15:04:05Z")
}

func shortMarker(m string) string {
	if len(m) > 12 {
		return m[:12]
	}
	return m
}
