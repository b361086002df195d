package tui

import "strings"

// Composer commands.
const (
	CmdImage  = "img"
	CmdLogout = "logout"
	CmdHelp   = "help"
	CmdQuit   = "quit"
)

// Command represents a parsed composer command.
type Command struct {
	Name string
	Args string
}

// ParseInput splits composer input into a command when it starts with '/'.
// A leading "//" escapes the slash and yields plain text.
func ParseInput(input string) (cmd Command, text string, isCmd bool) {
	if strings.HasPrefix(input, "//") {
		return Command{}, input[1:], false
	}
	if !strings.HasPrefix(input, "/") {
		return Command{}, input, false
	}
	return ParseCommand(input[1:]), "", true
}

// ParseCommand parses a command string (without the leading '/').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ImageArgs splits "/img" arguments into a file path and an optional caption.
func ImageArgs(args string) (path, caption string) {
	path, caption, _ = strings.Cut(strings.TrimSpace(args), " ")
	return path, strings.TrimSpace(caption)
}
