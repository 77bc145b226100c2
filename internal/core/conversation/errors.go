package conversation

import "errors"

var (
	// ErrEmptyInput is returned for whitespace-only submissions
	ErrEmptyInput = errors.New("message is empty")

	// ErrTurnActive is returned when a submission arrives before the prior
	// turn settled
	ErrTurnActive = errors.New("a response is still being generated")

	// ErrNoSession is returned when no session is active
	ErrNoSession = errors.New("no active session")
)

// ValidationError is a malformed command caught before any remote call. Its
// message is shown to the user as the assistant reply.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

const (
	// MsgImageNoPrompt settles a bare /image command
	MsgImageNoPrompt = "Please provide a description for the image after /image."

	// MsgGenerating is the placeholder of an image turn
	MsgGenerating = "Generating image..."

	// MsgApology replaces the placeholder of a failed turn
	MsgApology = "Sorry, I encountered an error processing your request."

	// MsgBanner is recorded for the session of a failed turn
	MsgBanner = "Failed to generate response. Please check your API key and try again."
)
