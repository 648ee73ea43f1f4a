// Package templates renders the admin HTML pages as templ components.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1b1b1b}
table{border-collapse:collapse;margin-bottom:2rem}
th,td{border:1px solid #dfe1e2;padding:.4rem .8rem;text-align:left}
th{background:#f0f0f0}
.completed{color:#00a91c}.failed{color:#d54309}.running{color:#005ea2}
.muted{color:#71767a}`

// Layout wraps body in the shared page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><style>`+styles+`</style></head><body><h1>`+
			templ.EscapeString(title)+`</h1>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
