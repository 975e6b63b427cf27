package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// VerificationData is what the verification email template needs.
type VerificationData struct {
	Username        string
	VerificationURL string // endpoint the token is submitted to
	Token           string
	SiteName        string
}

const verificationSubject = "Verify your email address"

var verificationHTML = htmltemplate.Must(htmltemplate.New("verify.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Welcome to {{.SiteName}}, {{.Username}}!</h2>
  <p>Please confirm your email address by submitting the token below to
     <a href="{{.VerificationURL}}">{{.VerificationURL}}</a>.</p>
  <p style="font-size: 1.2em;"><code>{{.Token}}</code></p>
  <p>The token expires in 24 hours. If you did not create an account, ignore this email.</p>
</body>
</html>`))

var verificationText = texttemplate.Must(texttemplate.New("verify.txt").Parse(`Welcome to {{.SiteName}}, {{.Username}}!

Confirm your email address by submitting this token to {{.VerificationURL}}:

    {{.Token}}

The token expires in 24 hours. If you did not create an account, ignore this email.
`))

// VerificationEmail renders the verification message for to.
func VerificationEmail(to string, data VerificationData) (Message, error) {
	var html, text bytes.Buffer
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mail: rendering verification html: %w", err)
	}
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mail: rendering verification text: %w", err)
	}
	return Message{
		To:      to,
		Subject: verificationSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
