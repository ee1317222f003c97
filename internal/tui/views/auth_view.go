package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/tui/ui"
)

// AuthMode selects between signing in and creating an account.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeSignup
)

// Credentials is what the auth form collects.
type Credentials struct {
	Mode     AuthMode
	FullName string
	Email    string
	Password string
}

// AuthView is the sign-in and sign-up form.
type AuthView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	mode     AuthMode
	creds    Credentials
	busy     bool
	onSubmit func(Credentials)
}

// NewAuthView creates the auth form in login mode.
func NewAuthView(theme *ui.Theme) *AuthView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(tcell.ColorDarkSlateGray)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, 60, 0, true).
			AddItem(nil, 0, 1, false), 13, 0, true).
		AddItem(message, 2, 0, false).
		AddItem(nil, 0, 1, false)

	av := &AuthView{
		Flex:    flex,
		theme:   theme,
		form:    form,
		message: message,
	}
	av.build()
	return av
}

// Name implements ui.Component.
func (av *AuthView) Name() string {
	if av.mode == ModeSignup {
		return "Sign up"
	}
	return "Sign in"
}

// FocusTarget implements ui.Component.
func (av *AuthView) FocusTarget() tview.Primitive { return av.form }

// SetOnSubmit sets the callback run when the form is submitted.
func (av *AuthView) SetOnSubmit(fn func(Credentials)) {
	av.onSubmit = fn
}

// Mode returns the form's mode.
func (av *AuthView) Mode() AuthMode { return av.mode }

// SetMode switches between login and signup, keeping the typed email.
func (av *AuthView) SetMode(mode AuthMode) {
	if av.mode == mode {
		return
	}
	av.mode = mode
	av.creds.Password = ""
	av.build()
}

// SetBusy disables resubmission while a request is in flight.
func (av *AuthView) SetBusy(busy bool) {
	av.busy = busy
	if busy {
		av.ShowMessage("Please wait…")
	}
}

// ShowError displays a validation or server message under the form.
func (av *AuthView) ShowError(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "[%s]%s[-]", ui.Tag(av.theme.FlashErrColor), tview.Escape(msg))
}

// ShowMessage displays a neutral status line under the form.
func (av *AuthView) ShowMessage(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprint(av.message, tview.Escape(msg))
}

func (av *AuthView) build() {
	av.form.Clear(true)
	av.creds.Mode = av.mode
	if av.mode == ModeSignup {
		av.form.SetTitle(" Create account ")
		av.form.AddInputField("Full name", av.creds.FullName, 40, nil, func(s string) { av.creds.FullName = s })
	} else {
		av.form.SetTitle(" Sign in ")
	}
	av.form.AddInputField("Email", av.creds.Email, 40, nil, func(s string) { av.creds.Email = s })
	av.form.AddPasswordField("Password", "", 40, '*', func(s string) { av.creds.Password = s })

	submit, other := "Sign in", "Create account"
	if av.mode == ModeSignup {
		submit, other = "Sign up", "Back to sign in"
	}
	av.form.AddButton(submit, av.Submit)
	av.form.AddButton(other, func() {
		if av.mode == ModeLogin {
			av.SetMode(ModeSignup)
		} else {
			av.SetMode(ModeLogin)
		}
	})
	av.message.Clear()
}

// Submit hands the collected credentials to the callback unless a request
// is already running.
func (av *AuthView) Submit() {
	if av.busy || av.onSubmit == nil {
		return
	}
	av.onSubmit(av.creds)
}
