package poe

import (
	"bufio"
	"io"
	"strings"
)

const maxFrameBytes = 1 << 20

// frame is one dispatched server-sent event.
type frame struct {
	Event string
	Data  string
}

// decoder splits a server-sent event stream into frames. Lines may end in
// "\n" or "\r\n"; multiple data lines are joined with "\n".
type decoder struct {
	scanner *bufio.Scanner
}

func newDecoder(r io.Reader) *decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &decoder{scanner: scanner}
}

// Next returns the next complete frame, or io.EOF once the stream ends.
// A trailing frame without a blank line terminator is still returned.
func (d *decoder) Next() (frame, error) {
	var (
		current frame
		data    []string
		seen    bool
	)

	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")
		if line == "" {
			if !seen {
				continue
			}
			current.Data = strings.Join(data, "\n")
			return current, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			current.Event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}

	if err := d.scanner.Err(); err != nil {
		return frame{}, err
	}
	if seen {
		current.Data = strings.Join(data, "\n")
		return current, nil
	}
	return frame{}, io.EOF
}
