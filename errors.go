package stagecraft

import (
	"errors"
	"fmt"
	"strings"
)

// UsageError reports misuse of the engine API: mutating the world outside a
// message's execute step, double-adding a token, keeping a reference to a
// removed token, and so on. These are programmer errors, so they are raised
// as panics and are deliberately wordy: the summary states what went wrong
// and the detail explains the rule that was violated and how to fix it.
type UsageError struct {
	Summary string
	Detail  string
}

func (e *UsageError) Error() string {
	if e.Detail == "" {
		return e.Summary
	}
	return e.Summary + "\n\n" + wrap(e.Detail, 79)
}

// panicUsage raises a UsageError. The engine never recovers these; they are
// meant to surface loudly during development.
func panicUsage(summary string, detail string, args ...any) {
	panic(&UsageError{
		Summary: summary,
		Detail:  fmt.Sprintf(detail, args...),
	})
}

// wrap reflows a paragraph to the given width, preserving blank-line
// paragraph breaks.
func wrap(text string, width int) string {
	paragraphs := strings.Split(text, "\n\n")
	for i, paragraph := range paragraphs {
		words := strings.Fields(paragraph)
		var b strings.Builder
		line := 0
		for _, word := range words {
			if line > 0 && line+1+len(word) > width {
				b.WriteByte('\n')
				line = 0
			} else if line > 0 {
				b.WriteByte(' ')
				line++
			}
			b.WriteString(word)
			line += len(word)
		}
		paragraphs[i] = b.String()
	}
	return strings.Join(paragraphs, "\n\n")
}

// Rejection is the recoverable veto returned by a message's Check hook. On
// the server it prevents broadcast; on a client it triggers an undo of any
// speculative execution. It is expected control flow, not a fault.
type Rejection struct {
	Reason string
}

func (e *Rejection) Error() string {
	return e.Reason
}

// Reject builds a Rejection for use inside Check hooks.
func Reject(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a check veto rather than a fault.
func IsRejection(err error) bool {
	var rejection *Rejection
	return errors.As(err, &rejection)
}

// TransportError is fatal to a session: connection loss, a malformed frame,
// or a break in the server's message ordering. The engine never tries to
// keep applying state after one of these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// transportf builds a TransportError from a formatted condition.
func transportf(op string, format string, args ...any) *TransportError {
	return &TransportError{Op: op, Err: fmt.Errorf(format, args...)}
}
