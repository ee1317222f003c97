package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	if canonical, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = canonical
	}
	return cmd
}

var commandAliases = map[string]string{
	"q":    "quit",
	"q!":   "quit",
	"c":    "chat",
	"open": "chat",
	"fwd":  "forward",
	"rm":   "delete",
	"h":    "help",
}

// List splits comma separated arguments, dropping empty entries.
func (c Command) List() []string {
	return splitList(c.Args)
}

// GroupSpec splits "name: a, b" into the group name and member names.
func (c Command) GroupSpec() (name string, members []string) {
	name, rest, _ := strings.Cut(c.Args, ":")
	return strings.TrimSpace(name), splitList(rest)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
