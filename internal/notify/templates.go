package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// Template names accepted by Render. Anything else renders the fallback body.
const (
	TemplateTestDriveFollowup = "test_drive_followup"
	TemplatePricingInfo       = "pricing_info"
	TemplatePostCallThankYou  = "post_call_thankyou"
	TemplateNurtureCampaign   = "nurture_campaign"

	templateFallback = "fallback"
	templateInvoice  = "invoice"
)

const (
	DefaultCompany   = "Luxury Auto Group"
	defaultFirstName = "Valued Customer"
)

type emailData struct {
	FirstName string
	Company   string
}

// Templates renders the fixed follow-up bodies for one company.
type Templates struct {
	company string
}

func NewTemplates(company string) Templates {
	if strings.TrimSpace(company) == "" {
		company = DefaultCompany
	}
	return Templates{company: company}
}

// Known reports whether name has its own body.
func Known(name string) bool {
	switch name {
	case TemplateTestDriveFollowup, TemplatePricingInfo, TemplatePostCallThankYou, TemplateNurtureCampaign:
		return true
	default:
		return false
	}
}

// Render produces the plain-text body for name addressed to firstName.
func (t Templates) Render(name, firstName string) (string, error) {
	if !Known(name) {
		name = templateFallback
	}
	if strings.TrimSpace(firstName) == "" {
		firstName = defaultFirstName
	}
	return t.execute(name, emailData{FirstName: strings.TrimSpace(firstName), Company: t.company})
}

// Invoice returns the subject and body of the invoice delivery email.
func (t Templates) Invoice() (string, string, error) {
	body, err := t.execute(templateInvoice, emailData{Company: t.company})
	if err != nil {
		return "", "", err
	}
	return "Your Invoice from " + t.company, body, nil
}

func (t Templates) execute(name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".txt", data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}
