package optimizer

import (
	"errors"
	"fmt"
)

const columnOptFailedWarning = `The necessary columns optimization failed; exception raised:

%s with message %s.

Please see the FAQ section of the docs for more information:
https://github.com/roach88/colgraph/blob/main/docs/faq.md

`

// FormatWarning renders the projection failure warning for err. The
// innermost wrapped error supplies both the type and the message.
func FormatWarning(err error) string {
	root := rootCause(err)
	return fmt.Sprintf(columnOptFailedWarning, fmt.Sprintf("%T", root), root.Error())
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
