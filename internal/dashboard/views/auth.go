package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// LoginPage renders the sign-in form. errMsg, when non-empty, is shown
// above the form.
func LoginPage(errMsg string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := renderFormError(w, errMsg); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<section class="auth">
<h1>Iniciar sesión</h1>
<form method="post" action="/login">
<label>Correo electrónico<input type="email" name="email" required></label>
<label>Contraseña<input type="password" name="password" required></label>
<button type="submit">Entrar</button>
</form>
<p>¿Sin cuenta? <a href="/register">Regístrate</a></p>
</section>
`)
		return err
	})
}

// RegisterPage renders the account creation form, re-filling the email
// and name fields after a validation failure.
func RegisterPage(errMsg, email, name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := renderFormError(w, errMsg); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, `<section class="auth">
<h1>Crear cuenta</h1>
<form method="post" action="/register">
<label>Nombre<input type="text" name="name" value="%s"></label>
<label>Correo electrónico<input type="email" name="email" value="%s" required></label>
<label>Contraseña<input type="password" name="password" required></label>
<p class="hint">Mínimo 6 caracteres, con mayúscula, minúscula, número y símbolo.</p>
<button type="submit">Registrarse</button>
</form>
<p>¿Ya tienes cuenta? <a href="/">Inicia sesión</a></p>
</section>
`, templ.EscapeString(name), templ.EscapeString(email))
		return err
	})
}

func renderFormError(w io.Writer, errMsg string) error {
	if errMsg == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, `<div class="form-error" role="alert">%s</div>`, templ.EscapeString(errMsg))
	return err
}
