package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// ResetSubject is the subject line of reset emails.
const ResetSubject = "Password Reset Request"

// Message is a rendered email body pair.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type resetView struct {
	Link    string
	Minutes int
}

var resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .button { display: inline-block; padding: 12px 24px; background-color: #007bff;
              color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
    .footer { margin-top: 30px; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <h2>Password Reset Request</h2>
    <p>You requested to reset your password. Click the button below to reset it:</p>
    <a href="{{.Link}}" class="button">Reset Password</a>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #666;">{{.Link}}</p>
    <p>This link will expire in {{.Minutes}} minutes.</p>
    <p>If you didn't request this, please ignore this email.</p>
    <div class="footer">
      <p>This is an automated email, please do not reply.</p>
    </div>
  </div>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Password Reset Request

You requested to reset your password. Use the link below to reset it:

{{.Link}}

This link will expire in {{.Minutes}} minutes.

If you didn't request this, please ignore this email.

This is an automated email, please do not reply.
`))

// RenderReset renders the reset email for link, stating ttl in whole minutes.
func RenderReset(link string, ttl time.Duration) (Message, error) {
	view := resetView{Link: link, Minutes: int(ttl / time.Minute)}

	var html, text bytes.Buffer
	if err := resetHTML.Execute(&html, view); err != nil {
		return Message{}, err
	}
	if err := resetText.Execute(&text, view); err != nil {
		return Message{}, err
	}

	return Message{
		Subject: ResetSubject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}, nil
}
