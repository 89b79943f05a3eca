package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"statusLabel": statusLabel,
	"fmtTime":     func(t time.Time) string { return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST") },
}

// Renderer turns events into email bodies.
type Renderer struct {
	appName string
	pages   map[string]*template.Template
}

func NewRenderer(appName string) (*Renderer, error) {
	r := &Renderer{appName: appName, pages: map[string]*template.Template{}}
	for _, name := range []string{"transaction_status", "welcome"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TransactionStatus renders the status change mail.
func (r *Renderer) TransactionStatus(ev queue.TransactionStatusEvent) (Message, error) {
	body, err := r.render("transaction_status", map[string]any{"Name": ev.UserName, "AppName": r.appName, "Event": ev})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template: "transaction_status",
		To:       ev.UserEmail,
		ToName:   ev.UserName,
		Subject:  fmt.Sprintf("[%s] %s: %s", ev.InvoiceNo, ev.EventTitle, statusLabel(ev.Status)),
		HTML:     body,
	}, nil
}

// Welcome renders the registration mail.
func (r *Renderer) Welcome(ev queue.UserRegisteredEvent) (Message, error) {
	body, err := r.render("welcome", map[string]any{"Name": ev.Name, "AppName": r.appName, "User": ev})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template: "welcome",
		To:       ev.Email,
		ToName:   ev.Name,
		Subject:  "Welcome to " + r.appName,
		HTML:     body,
	}, nil
}

func statusLabel(s string) string {
	switch s {
	case "WAITING_PAYMENT":
		return "waiting for payment"
	case "WAITING_CONFIRMATION":
		return "waiting for confirmation"
	case "DONE":
		return "confirmed"
	}
	return strings.ToLower(s)
}
