package dialog

import "github.com/MarkoPoloResearchLab/feedback_sdk/pkg/attribution"

// Form describes everything a View has to render.
type Form struct {
	Title             string
	MessageHint       string
	EmailHint         string
	Email             string
	EmailFieldVisible bool
	PoweredByVisible  bool
	Attribution       attribution.Config
	SendLabel         string
	CancelLabel       string
}

// Fields holds the text currently entered in the form.
type Fields struct {
	Message string
	Email   string
}

// View is the host toolkit's rendering of the dialog. The controller calls it
// from the goroutine that handles the corresponding dialog operation.
type View interface {
	Render(form Form)
	ReadFields() Fields
	ClearMessage()
	SetBusy(busy bool, message string)
	ShowMessage(message string)
	ShowError(err error)
	// Hide removes the dialog from the screen but keeps it reusable.
	Hide()
	// Dismiss closes the dialog for good.
	Dismiss()
}

type nopView struct{}

func (nopView) Render(Form) {}
func (nopView) ReadFields() Fields { return Fields{} }
func (nopView) ClearMessage() {}
func (nopView) SetBusy(bool, string) {}
func (nopView) ShowMessage(string) {}
func (nopView) ShowError(error) {}
func (nopView) Hide() {}
func (nopView) Dismiss() {}
