package server

import (
	"slices"
	"strings"

	"github.com/eternalApril/crescent/internal/resp"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself, negative means "at least"
	flags    []string // fast, stale, loading, etc
	firstKey int      // 1-based index of the first key
	lastKey  int      // 1-based index of the last key
	step     int      // Step count for finding keys
}

// metadata of the built-in commands. None of them touch keys, so the key positions are all zero
var commandRegistry = map[string]commandMetadata{
	"HELLO":   {-1, []string{"noscript", "loading", "stale", "fast", "no_auth"}, 0, 0, 0},
	"PING":    {-1, []string{"fast", "stale"}, 0, 0, 0},
	"ECHO":    {2, []string{"fast"}, 0, 0, 0},
	"CLIENT":  {-1, []string{"noscript", "loading", "stale"}, 0, 0, 0},
	"COMMAND": {-1, []string{"random", "loading", "stale"}, 0, 0, 0},
}

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
	since      string
}

// commandDocsRegistry documentation registry
var commandDocsRegistry = map[string]commandDoc{
	"HELLO": {
		summary:    "Handshakes with the server.",
		complexity: "O(1)",
		group:      "connection",
		since:      "6.0.0",
	},
	"PING": {
		summary:    "Returns the server's liveliness response.",
		complexity: "O(1)",
		group:      "connection",
		since:      "1.0.0",
	},
	"ECHO": {
		summary:    "Returns the given string.",
		complexity: "O(1)",
		group:      "connection",
		since:      "1.0.0",
	},
	"CLIENT": {
		summary:    "A container for client connection commands.",
		complexity: "Depends on subcommand.",
		group:      "connection",
		since:      "2.4.0",
	},
	"COMMAND": {
		summary:    "Returns detailed information about all commands.",
		complexity: "O(N) where N is the total number of commands.",
		group:      "server",
		since:      "2.8.13",
	},
}

// sortedNames returns the registry keys in a stable order
func sortedNames[T any](registry map[string]T) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

// metadataOf returns the registry entry of name, commands without one take any number of arguments
func metadataOf(name string) commandMetadata {
	if meta, ok := commandRegistry[name]; ok {
		return meta
	}
	return commandMetadata{arity: -1}
}

func makeInfoCmdArray(name string) resp.Value {
	meta := metadataOf(name)
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString(strings.ToLower(name)),
		resp.MakeInteger(int64(meta.arity)),
		makeFlagsArray(meta.flags),
		resp.MakeInteger(int64(meta.firstKey)),
		resp.MakeInteger(int64(meta.lastKey)),
		resp.MakeInteger(int64(meta.step)),
	})
}

func (e *Engine) allCommands() resp.Value {
	names := sortedNames(e.commands)
	cmdArray := make([]resp.Value, 0, len(names))
	for _, name := range names {
		cmdArray = append(cmdArray, makeInfoCmdArray(name))
	}
	return resp.MakeArray(cmdArray)
}

// commandsInfo returns one info entry per requested name, null for unknown names
func (e *Engine) commandsInfo(args []resp.Value) resp.Value {
	result := make([]resp.Value, 0, len(args))
	for _, arg := range args {
		name := strings.ToUpper(string(arg.Str))
		if _, ok := e.commands[name]; !ok {
			result = append(result, resp.MakeNilArray())
			continue
		}
		result = append(result, makeInfoCmdArray(name))
	}
	return resp.MakeArray(result)
}

// commandsDocs returns documentation for the requested commands or all registered commands.
// Commands without documentation are left out
// Format: [Name, [Summary, val, Since, val...], Name, [...]]
func (e *Engine) commandsDocs(args []resp.Value) resp.Value {
	var targets []string

	if len(args) == 0 {
		targets = sortedNames(e.commands)
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(string(arg.Str)))
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, name := range targets {
		if _, ok := e.commands[name]; !ok {
			continue
		}
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, resp.MakeBulkString(strings.ToLower(name)))

		props := []resp.Value{
			resp.MakeBulkString("summary"),
			resp.MakeBulkString(doc.summary),
			resp.MakeBulkString("since"),
			resp.MakeBulkString(doc.since),
			resp.MakeBulkString("group"),
			resp.MakeBulkString(doc.group),
			resp.MakeBulkString("complexity"),
			resp.MakeBulkString(doc.complexity),
		}

		result = append(result, resp.MakeArray(props))
	}

	return resp.MakeArray(result)
}
