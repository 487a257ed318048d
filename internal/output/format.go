package output

import (
	"fmt"

	"github.com/crimson-sun/kartavya/internal/model"
)

// Message returns the human-readable text for an event. An explicit
// Message on the event wins; otherwise one is derived from the kind.
func Message(e model.Event) string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case model.EventReportSubmitted:
		if e.Severity != "" {
			return fmt.Sprintf("Your report %q was submitted with %s severity.", e.Title, e.Severity)
		}
		return fmt.Sprintf("Your report %q was submitted.", e.Title)
	case model.EventReportStatusChanged:
		return fmt.Sprintf("Your report %q is now %s.", e.Title, e.Status)
	case model.EventReportUpvoted:
		return fmt.Sprintf("Someone upvoted your report %q.", e.Title)
	}
	return fmt.Sprintf("Update on your report %q.", e.Title)
}

// FormatEvent returns a copy of the event with Message filled in.
func FormatEvent(e model.Event) model.Event {
	e.Message = Message(e)
	return e
}
