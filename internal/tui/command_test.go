package tui

import "testing"

func TestParseInput(t *testing.T) {
	tests := []struct {
		input string
		cmd   Command
		text  string
		isCmd bool
	}{
		{input: "hello", text: "hello"},
		{input: "/logout", cmd: Command{Name: "logout"}, isCmd: true},
		{input: "/IMG  cat.png  look ", cmd: Command{Name: "img", Args: "cat.png  look"}, isCmd: true},
		{input: "//not a command", text: "/not a command"},
		{input: "/", cmd: Command{Name: ""}, isCmd: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, text, isCmd := ParseInput(tt.input)
			if cmd != tt.cmd || text != tt.text || isCmd != tt.isCmd {
				t.Errorf("ParseInput(%q) = %+v, %q, %v", tt.input, cmd, text, isCmd)
			}
		})
	}
}

func TestImageArgs(t *testing.T) {
	tests := []struct {
		args, path, caption string
	}{
		{"cat.png", "cat.png", ""},
		{"cat.png my cat", "cat.png", "my cat"},
		{"", "", ""},
	}
	for _, tt := range tests {
		path, caption := ImageArgs(tt.args)
		if path != tt.path || caption != tt.caption {
			t.Errorf("ImageArgs(%q) = %q, %q", tt.args, path, caption)
		}
	}
}
