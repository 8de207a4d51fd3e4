package console

import (
	"strconv"
	"strings"
	"unicode"
)

// Command is a parsed console line: a name followed by whitespace separated
// arguments.
type Command struct {
	Name   string
	Args   []string
	Remote bool

	raw    string
	starts []int
}

// ParseCommand splits line into a command name and arguments.
func ParseCommand(line string) Command {
	var (
		fields []string
		starts []int
	)

	start := -1
	for i, r := range line {
		if unicode.IsSpace(r) {
			if start >= 0 {
				fields = append(fields, line[start:i])
				starts = append(starts, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
		starts = append(starts, start)
	}

	cmd := Command{raw: line}
	if len(fields) == 0 {
		return cmd
	}
	cmd.Name = fields[0]
	cmd.Args = fields[1:]
	cmd.starts = starts[1:]
	return cmd
}

// HasArg reports whether argument i was given.
func (c Command) HasArg(i int) bool {
	return i >= 0 && i < len(c.Args)
}

// Arg returns argument i, or def if it is missing.
func (c Command) Arg(i int, def string) string {
	if !c.HasArg(i) {
		return def
	}
	return c.Args[i]
}

// IntArg returns argument i as an int, or def if it is missing or malformed.
func (c Command) IntArg(i, def int) int {
	if !c.HasArg(i) {
		return def
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return def
	}
	return n
}

// Remaining returns the raw text from argument i to the end of the line,
// with inner spacing preserved.
func (c Command) Remaining(i int) string {
	if !c.HasArg(i) {
		return ""
	}
	return strings.TrimRightFunc(c.raw[c.starts[i]:], unicode.IsSpace)
}

// String returns the original line.
func (c Command) String() string {
	return c.raw
}
