package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"hallbook/pkg/model"
)

// Subjects are plain text; only bodies get HTML escaping.
type emailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

// Templates renders notification emails. The zero value is not usable; use
// NewTemplates.
type Templates struct {
	byKind map[model.NotificationKind]emailTemplate
}

var templateFuncs = template.FuncMap{
	"day": displayDay,
}

const (
	createdSubject = `New Booking Request for {{.HallName}}`
	createdBody    = `<p>Dear {{if .OwnerName}}{{.OwnerName}}{{else}}Owner{{end}},</p>
<p>User <b>{{.ConsumerName}}</b> has shortlisted your hall <b>{{.HallName}}</b> for the date <b>{{day .Day}}</b>.</p>
<p><a href="{{.ActionURL}}">Confirm Booking</a></p>
<p>Regards,<br>Team Halldekho</p>`

	rejectedSubject = `Booking Rejected for {{.HallName}}`
	rejectedBody    = `<p>Dear {{if .ConsumerName}}{{.ConsumerName}}{{else}}Customer{{end}},</p>
<p>Your booking for <b>{{.HallName}}</b> on <b>{{day .Day}}</b> was rejected as payment was not received. You may re-book with another date or hall.</p>
<p>Regards,<br>Team Halldekho</p>`

	confirmedSubject = `Booking Confirmed for {{.HallName}}`
	confirmedBody    = `<p>Dear {{if .ConsumerName}}{{.ConsumerName}}{{else}}Customer{{end}},</p>
<p>Your booking for <b>{{.HallName}}</b> on <b>{{day .Day}}</b> has been confirmed. You can download your receipt <a href="{{.ActionURL}}">here</a>.</p>
<p>Regards,<br>Team Halldekho</p>`
)

func NewTemplates() (*Templates, error) {
	sources := map[model.NotificationKind][2]string{
		model.NotificationBookingCreated:   {createdSubject, createdBody},
		model.NotificationBookingRejected:  {rejectedSubject, rejectedBody},
		model.NotificationBookingConfirmed: {confirmedSubject, confirmedBody},
	}

	t := &Templates{byKind: make(map[model.NotificationKind]emailTemplate, len(sources))}
	for kind, src := range sources {
		subject, err := texttemplate.New(string(kind) + ".subject").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		body, err := template.New(string(kind) + ".body").Funcs(templateFuncs).Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", kind, err)
		}
		t.byKind[kind] = emailTemplate{subject: subject, body: body}
	}
	return t, nil
}

// MustTemplates panics if the built-in templates fail to parse.
func MustTemplates() *Templates {
	t, err := NewTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Render returns the subject line and HTML body for n.
func (t *Templates) Render(n model.Notification) (string, string, error) {
	tmpl, ok := t.byKind[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, n.Data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", n.Kind, err)
	}
	if err := tmpl.body.Execute(&body, n.Data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", n.Kind, err)
	}
	return subject.String(), body.String(), nil
}

// displayDay turns a YYYY-MM-DD calendar day into "Mon Dec 01 2025".
// Unparseable input is shown as given.
func displayDay(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return day
	}
	return t.Format("Mon Jan 02 2006")
}
