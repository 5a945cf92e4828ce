package dialog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/feedbackapi"
)

// State is the lifecycle position of a Dialog.
type State int

const (
	StateConfigured State = iota
	StateShown
	StateSubmitting
	StateHidden
	StateCancelled
)

var stateNames = map[State]string{
	StateConfigured: "configured",
	StateShown:      "shown",
	StateSubmitting: "submitting",
	StateHidden:     "hidden",
	StateCancelled:  "cancelled",
}

func (state State) String() string {
	if name, known := stateNames[state]; known {
		return name
	}
	return "unknown"
}

// Dialog is the handle of a shown feedback dialog. Its methods are the dialog's buttons.
type Dialog struct {
	controller *Controller
	ctx        context.Context

	mutex sync.Mutex
	state State
}

// State reports the current lifecycle position.
func (dialog *Dialog) State() State {
	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	return dialog.state
}

func (dialog *Dialog) render() {
	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	dialog.controller.view.Render(dialog.controller.form())
	dialog.state = StateShown
}

// submission is the state captured when the send button is pressed.
type submission struct {
	dialog  *Dialog
	request feedbackapi.FeedbackRequest
}

// Submit handles the send button: it reads the form, captures the request and starts
// the submission. Configuration errors and a pending submission are returned and shown
// without touching the network.
func (dialog *Dialog) Submit() error {
	controller := dialog.controller

	dialog.mutex.Lock()
	switch dialog.state {
	case StateShown:
	case StateSubmitting:
		dialog.mutex.Unlock()
		return feedbackapi.ErrSubmissionInFlight
	default:
		dialog.mutex.Unlock()
		return ErrNotInteractive
	}
	fields := controller.view.ReadFields()
	current := &submission{
		dialog: dialog,
		request: feedbackapi.FeedbackRequest{
			Message:    fields.Message,
			Email:      fields.Email,
			Name:       controller.config.InitialName,
			Properties: controller.properties.Snapshot(),
		},
	}
	dialog.state = StateSubmitting
	controller.view.SetBusy(true, controller.config.SendingMessage)
	dialog.mutex.Unlock()

	controller.client.SetLoadingMessage(controller.config.SendingMessage)
	controller.client.SetCallback(current)
	sendErr := controller.client.SendFeedback(dialog.ctx, current.request)
	if sendErr == nil {
		return nil
	}

	controller.logger.Warn("feedback_submit_rejected", zap.Error(sendErr))
	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	if dialog.state == StateSubmitting {
		dialog.state = StateShown
		controller.view.SetBusy(false, "")
		controller.view.ShowError(sendErr)
	}
	return sendErr
}

// Cancel handles the cancel button. A pending submission is not aborted.
func (dialog *Dialog) Cancel() {
	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	if dialog.state == StateCancelled {
		return
	}
	dialog.state = StateCancelled
	dialog.controller.view.Dismiss()
}

// Reopen shows a dialog hidden after a successful submission again. The email
// the user entered survives the new render.
func (dialog *Dialog) Reopen() error {
	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	if dialog.state != StateHidden {
		return ErrNotInteractive
	}
	form := dialog.controller.form()
	form.Email = dialog.controller.view.ReadFields().Email
	dialog.controller.view.Render(form)
	dialog.state = StateShown
	return nil
}

func (current *submission) Success(result feedbackapi.SubmissionResult) {
	dialog := current.dialog
	controller := dialog.controller

	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	controller.properties.Reset()
	if dialog.state != StateSubmitting {
		controller.logger.Info("feedback_submitted_after_dismissal", zap.String("state", dialog.state.String()))
		return
	}
	controller.view.SetBusy(false, "")
	controller.view.ShowMessage(result.Message)
	controller.view.ClearMessage()
	controller.view.Hide()
	dialog.state = StateHidden
}

func (current *submission) Failure(err error) {
	dialog := current.dialog
	controller := dialog.controller

	dialog.mutex.Lock()
	defer dialog.mutex.Unlock()
	if dialog.state != StateSubmitting {
		controller.logger.Info("feedback_failed_after_dismissal", zap.String("state", dialog.state.String()), zap.Error(err))
		return
	}
	controller.view.SetBusy(false, "")
	controller.view.ShowError(err)
	dialog.state = StateShown
}
