package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/inkwell/pkg/session"
)

type action int

const (
	actDispatch action = iota
	actAppend
	actShow
	actPreview
	actState
	actHelp
	actQuit
)

// command is one parsed REPL line.
type command struct {
	act     action
	trigger session.Trigger
	text    string
}

const replHelp = `Lines are appended to the document. Commands:
  :w, :save          save now
  :o, :open [path]   open a file (prompts when path is omitted)
  :saveas [path]     save to a new file and bind it
  :reload            discard local edits and load the stored copy
  :dismiss           keep local edits and clear the conflict
  :poll              check the bound file for external changes
  :set <text>        replace the document with text
  :clear             empty the document
  :x, :toggle <n>    check or uncheck the n-th task item (from 1)
  :show              print the document
  :preview           print the rendered preview
  :state             print the session state
  :q, :quit          save pending edits and exit`

// parseCommand maps a REPL line to an action. Lines starting with "::" are
// appended with the first colon removed.
func parseCommand(line string) (command, error) {
	if !strings.HasPrefix(line, ":") {
		return command{act: actAppend, text: line}, nil
	}
	if strings.HasPrefix(line, "::") {
		return command{act: actAppend, text: line[1:]}, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "w", "save":
		return command{act: actDispatch, trigger: session.SaveTrigger{}}, nil
	case "o", "open":
		return command{act: actDispatch, trigger: session.OpenTrigger{Path: arg}}, nil
	case "saveas":
		return command{act: actDispatch, trigger: session.SaveAsTrigger{Path: arg}}, nil
	case "reload":
		return command{act: actDispatch, trigger: session.ReloadTrigger{}}, nil
	case "dismiss":
		return command{act: actDispatch, trigger: session.DismissTrigger{}}, nil
	case "poll":
		return command{act: actDispatch, trigger: session.TickTrigger{}}, nil
	case "set":
		return command{act: actDispatch, trigger: session.EditTrigger{Text: arg}}, nil
	case "clear":
		return command{act: actDispatch, trigger: session.EditTrigger{}}, nil
	case "x", "toggle":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return command{}, fmt.Errorf("%s needs a task number from 1", ":"+name)
		}
		return command{act: actDispatch, trigger: session.ToggleTaskTrigger{Index: n - 1}}, nil
	case "show":
		return command{act: actShow}, nil
	case "preview":
		return command{act: actPreview}, nil
	case "state":
		return command{act: actState}, nil
	case "h", "help":
		return command{act: actHelp}, nil
	case "q", "quit":
		return command{act: actQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %q (try :help)", ":"+name)
}

// appendLine adds line to text on its own line.
func appendLine(text, line string) string {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + line + "\n"
}
