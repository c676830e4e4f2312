package commands

import "fmt"

// UserError is a bad-argument style failure. Its message is shown to the
// invoking user verbatim and it is never reported to the operator.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Userf formats a UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

var (
	errGuildOnly = &UserError{Message: "This command can not be used in private messages."}
	errNotOwner  = &UserError{Message: "You are not allowed to use this command."}
)

const genericFailure = "Something went wrong while running this command, the developers have been notified."
