// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// CodeEmailData fills the one-time code templates.
type CodeEmailData struct {
	SiteName  string
	FirstName string
	Code      string
	ExpiresIn string // e.g. "10 minutes"
}

// BuildEmailConfirmation is sent after signup with a 4-digit code.
func BuildEmailConfirmation(to string, data CodeEmailData) Email {
	return buildCodeEmail(to, fmt.Sprintf("Verify your %s email", data.SiteName),
		"Please verify your email so we can confirm it is really you. Use the code below.", data)
}

// BuildPasswordReset carries the password reset code.
func BuildPasswordReset(to string, data CodeEmailData) Email {
	return buildCodeEmail(to, fmt.Sprintf("Your %s password reset code", data.SiteName),
		"We received a request to reset your password. Use the code below.", data)
}

func buildCodeEmail(to, subject, lead string, data CodeEmailData) Email {
	var text bytes.Buffer
	if data.FirstName != "" {
		fmt.Fprintf(&text, "Hi %s,\n\n", data.FirstName)
	}
	fmt.Fprintf(&text, "%s\n\n    %s\n\n", lead, data.Code)
	if data.ExpiresIn != "" {
		fmt.Fprintf(&text, "This code expires in %s.\n\n", data.ExpiresIn)
	}
	text.WriteString("If you did not request this, you can safely ignore this email.\n")

	return Email{
		To:       to,
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: render(codeTmpl, struct {
			CodeEmailData
			Lead string
		}{data, lead}),
	}
}

// InvitationEmailData fills the invitation template.
type InvitationEmailData struct {
	SiteName   string
	ChurchName string
	FirstName  string
	AcceptURL  string
	ExpiresIn  string
}

// BuildInvitation invites a contact to create an account.
func BuildInvitation(to string, data InvitationEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hi %s,\n\n", data.FirstName)
	fmt.Fprintf(&text, "You have been invited to join %s on %s.\n\n", data.ChurchName, data.SiteName)
	fmt.Fprintf(&text, "Accept the invitation here:\n%s\n\n", data.AcceptURL)
	if data.ExpiresIn != "" {
		fmt.Fprintf(&text, "This link expires in %s.\n", data.ExpiresIn)
	}
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("You're invited to %s", data.ChurchName),
		TextBody: text.String(),
		HTMLBody: render(inviteTmpl, data),
	}
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

var codeTmpl = template.Must(template.New("code").Parse(layoutHead + `
              {{if .FirstName}}<p style="margin: 0 0 16px; font-size: 16px; color: #374151;">Hi {{.FirstName}},</p>{{end}}
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">{{.Lead}}</p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>
              {{if .ExpiresIn}}<p style="margin: 0; font-size: 13px; color: #9ca3af; text-align: center;">This code expires in {{.ExpiresIn}}.</p>{{end}}
` + layoutFoot))

var inviteTmpl = template.Must(template.New("invite").Parse(layoutHead + `
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151;">Hi {{.FirstName}},</p>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">You have been invited to join <strong>{{.ChurchName}}</strong>.</p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.AcceptURL}}" style="display: inline-block; padding: 14px 32px; background-color: #25586b; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">Accept invitation</a>
                  </td>
                </tr>
              </table>
              {{if .ExpiresIn}}<p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This link expires in {{.ExpiresIn}}.</p>{{end}}
` + layoutFoot))

const layoutHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #25586b;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">`

const layoutFoot = `
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
