// Package templates renders the transactional emails the worker sends.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Welcome, {{.Name}}!</h2>
  <p>Your account <strong>{{.Email}}</strong> has been created.</p>
  <p>You can now sign in and set up your profile.</p>
</body>
</html>
`))

var resetTmpl = template.Must(template.New("reset_password").Parse(`
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Reset your password</h2>
  <p>Hi {{.Name}},</p>
  <p>Somebody (hopefully you) requested a password reset for <strong>{{.Email}}</strong>.</p>
  <p><a href="{{.ResetURL}}">Click here to choose a new password.</a></p>
  <p>The link expires at {{.ExpiresAt}}. If you did not request this, you can ignore this email.</p>
</body>
</html>
`))

// Render returns subject, text and HTML bodies for the named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	var buf bytes.Buffer
	switch name {
	case "welcome":
		if err = welcomeTmpl.Execute(&buf, data); err != nil {
			return "", "", "", err
		}
		return "Welcome aboard", fmt.Sprintf("Welcome, %v! Your account has been created.", data["Name"]), buf.String(), nil
	case "reset_password":
		if err = resetTmpl.Execute(&buf, data); err != nil {
			return "", "", "", err
		}
		return "Reset your password",
			fmt.Sprintf("Reset your password: %v (expires %v)", data["ResetURL"], data["ExpiresAt"]),
			buf.String(), nil
	default:
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
}
