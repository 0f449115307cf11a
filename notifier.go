package main

import (
	"fmt"
	"io"

	"kintai/kintai"
)

// WriterNotifier prints reminders to a writer. The production deployment
// replaces this with a chat transport.
type WriterNotifier struct {
	Out io.Writer
}

func (n *WriterNotifier) Notify(group kintai.GroupID, person kintai.PersonID, message string, media string) error {
	if media != "" {
		_, err := fmt.Fprintf(n.Out, "[%s] @%s %s (media: %s)\n", group, person, message, media)
		return err
	}
	_, err := fmt.Fprintf(n.Out, "[%s] @%s %s\n", group, person, message)
	return err
}
