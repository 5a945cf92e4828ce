// Package terminal renders the feedback dialog on a line-oriented terminal.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/attribution"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/dialog"
)

const (
	titleFormat         = "== %s ==\n"
	messagePromptFormat = "%s (finish with an empty line)\n"
	emailPromptFormat   = "%s [%s]: "
	busyFormat          = "%s\n"
	successFormat       = "%s\n"
	errorFormat         = "error: %v\n"
	footerFormat        = "%s\n"
	actionsFormat       = "[%s] [%s]\n"
)

// ErrEmptyMessage reports that the prompt ended without any message text.
var ErrEmptyMessage = errors.New("terminal: empty message")

// Outcome is the result of one submission attempt as displayed to the user.
type Outcome struct {
	Message string
	Err     error
}

// View implements dialog.View over a reader and a writer.
type View struct {
	reader *bufio.Reader
	writer io.Writer

	mutex    sync.Mutex
	form     dialog.Form
	fields   dialog.Fields
	outcomes chan Outcome
	hidden   bool
}

// NewView creates a view reading answers from input and printing to output.
func NewView(input io.Reader, output io.Writer) *View {
	return &View{
		reader:   bufio.NewReader(input),
		writer:   output,
		outcomes: make(chan Outcome, 1),
	}
}

// Outcomes delivers the displayed result of every submission attempt.
func (view *View) Outcomes() <-chan Outcome {
	return view.outcomes
}

// SetMessage fills the message field without prompting.
func (view *View) SetMessage(message string) {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	view.fields.Message = message
}

// Hidden reports whether the dialog was hidden or dismissed.
func (view *View) Hidden() bool {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	return view.hidden
}

func (view *View) Render(form dialog.Form) {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	view.form = form
	view.fields.Email = form.Email
	view.hidden = false

	fmt.Fprintf(view.writer, titleFormat, form.Title)
	if form.PoweredByVisible {
		fmt.Fprintf(view.writer, footerFormat, attribution.RenderText(form.Attribution))
	}
	fmt.Fprintf(view.writer, actionsFormat, form.SendLabel, form.CancelLabel)
}

// Prompt asks for the fields that are still empty. The message is read until
// an empty line; the email prompt keeps the pre-filled value on an empty answer.
func (view *View) Prompt() error {
	view.mutex.Lock()
	defer view.mutex.Unlock()

	if strings.TrimSpace(view.fields.Message) == "" {
		fmt.Fprintf(view.writer, messagePromptFormat, view.form.MessageHint)
		message, readErr := view.readParagraph()
		if readErr != nil {
			return readErr
		}
		if message == "" {
			return ErrEmptyMessage
		}
		view.fields.Message = message
	}

	if view.form.EmailFieldVisible {
		fmt.Fprintf(view.writer, emailPromptFormat, view.form.EmailHint, view.fields.Email)
		line, readErr := view.readLine()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if answer := strings.TrimSpace(line); answer != "" {
			view.fields.Email = answer
		}
	}
	return nil
}

func (view *View) readParagraph() (string, error) {
	var lines []string
	for {
		line, readErr := view.readLine()
		if strings.TrimSpace(line) == "" {
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				return "", readErr
			}
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return strings.Join(lines, "\n"), nil
			}
			return "", readErr
		}
	}
}

func (view *View) readLine() (string, error) {
	line, readErr := view.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), readErr
}

func (view *View) ReadFields() dialog.Fields {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	fields := view.fields
	if !view.form.EmailFieldVisible {
		fields.Email = view.form.Email
	}
	return fields
}

func (view *View) ClearMessage() {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	view.fields.Message = ""
}

func (view *View) SetBusy(busy bool, message string) {
	if !busy || message == "" {
		return
	}
	view.mutex.Lock()
	defer view.mutex.Unlock()
	fmt.Fprintf(view.writer, busyFormat, message)
}

func (view *View) ShowMessage(message string) {
	view.mutex.Lock()
	fmt.Fprintf(view.writer, successFormat, message)
	view.mutex.Unlock()
	view.publish(Outcome{Message: message})
}

func (view *View) ShowError(err error) {
	view.mutex.Lock()
	fmt.Fprintf(view.writer, errorFormat, err)
	view.mutex.Unlock()
	view.publish(Outcome{Err: err})
}

func (view *View) Hide() {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	view.hidden = true
}

func (view *View) Dismiss() {
	view.mutex.Lock()
	defer view.mutex.Unlock()
	view.hidden = true
}

// publish drops the outcome when nobody drained the previous one.
func (view *View) publish(outcome Outcome) {
	select {
	case view.outcomes <- outcome:
	default:
	}
}
