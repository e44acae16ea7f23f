package ami

import (
	"bufio"
	"io"
	"strings"
)

// The manager protocol frames a message as a run of "Name: Value" lines,
// each terminated by CRLF, with an empty line closing the message.

// Field is one ordered name/value pair of an outgoing action. Actions keep
// their field order on the wire, unlike decoded messages.
type Field struct {
	Name  string
	Value string
}

// ReadMessage assembles the next complete message from r. Lines without a
// colon are protocol noise and are skipped; empty lines before the first
// field are skipped too, which tolerates stray banner fragments. The first
// empty line after at least one field terminates the message.
func ReadMessage(r *bufio.Reader) (Message, error) {
	msg := Message{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(msg) == 0 {
				continue
			}
			return msg, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		msg[name] = value
	}
}

// WriteAction serializes an action as ordered field lines followed by the
// empty terminator line, in a single write.
func WriteAction(w io.Writer, fields []Field) error {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}
