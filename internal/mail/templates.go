package mail

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
)

var (
	verifyHTML = template.Must(template.New("verify").Parse(
		`<p>{{.Intro}} Click <a href="{{.Link}}">here</a> to verify your email.</p>` +
			`<p>This link expires in 24 hours.</p>`))
	verifyText = texttemplate.Must(texttemplate.New("verify").Parse(
		"{{.Intro}} Open this link to verify your email: {{.Link}}\n\nThis link expires in 24 hours.\n"))

	resetHTML = template.Must(template.New("reset").Parse(
		`<p>You requested a password reset. Click <a href="{{.Link}}">here</a> to reset your password.</p>` +
			`<p>This link expires in 1 hour. If you didn't request this, you can ignore this email.</p>`))
	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		"You requested a password reset. Open this link to reset your password: {{.Link}}\n\n" +
			"This link expires in 1 hour. If you didn't request this, you can ignore this email.\n"))
)

type linkData struct {
	Intro string
	Link  string
}

// Links builds the absolute URLs embedded in emails.
type Links struct {
	BaseURL    string
	VerifyPath string
	ResetPath  string
}

func (l Links) build(path, token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(l.BaseURL, "/") + path + "?" + q.Encode()
}

func (l Links) Verify(token, email string) string {
	p := l.VerifyPath
	if p == "" {
		p = "/api/v1/auth/verify"
	}
	return l.build(p, token, email)
}

func (l Links) Reset(token, email string) string {
	p := l.ResetPath
	if p == "" {
		p = "/reset-password"
	}
	return l.build(p, token, email)
}

// VerificationEmail is sent at registration; resend marks the re-request.
func VerificationEmail(to, link string, resend bool) (Message, error) {
	intro := "Welcome!"
	if resend {
		intro = "You requested a new verification email."
	}
	return render(to, "Verify your email", verifyHTML, verifyText, linkData{Intro: intro, Link: link})
}

func ResetEmail(to, link string) (Message, error) {
	return render(to, "Reset your password", resetHTML, resetText, linkData{Link: link})
}

func render(to, subject string, h *template.Template, t *texttemplate.Template, data linkData) (Message, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, data); err != nil {
		return Message{}, err
	}
	if err := t.Execute(&tb, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: hb.String(), Text: tb.String()}, nil
}
