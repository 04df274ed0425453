package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Utility Bill {{.EventLabel}}]
Park: {{.Park}}
Lot: {{.Lot}}
Period: {{.PeriodStart}} to {{.PeriodEnd}}
Amount Due: {{.Amount}}
Due Date: {{.DueDate}}
Status: {{.Status}}
{{- range .Charges}}
  {{.Utility}}: {{.Amount}}
{{- end}}
{{ if .PortalURL }}
View: {{.PortalURL}}
{{ end }}`

// ChargeLine is one charge row in a rendered notification.
type ChargeLine struct {
	Utility string
	Amount  string
}

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Park        string
	ParkID      string
	Lot         string
	LotID       string
	BillID      string
	PeriodStart string
	PeriodEnd   string
	Amount      string
	DueDate     string
	Status      string
	Charges     []ChargeLine
	PortalURL   string
	Event       string
	EventLabel  string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("bill-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("bill template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
