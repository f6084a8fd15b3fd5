package engine

import (
	"bufio"
	"io"
	"strings"
)

// streamSSE reads server-sent events off r and hands each complete event to
// onEvent. Multi-line data fields are joined with newlines; comment lines and
// unknown fields are ignored.
func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		event string
		data  []string
	)
	emit := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		joined := strings.Join(data, "\n")
		name := event
		event, data = "", nil
		if onEvent == nil {
			return nil
		}
		return onEvent(name, joined)
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			if err := emit(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment, keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return emit()
}
