package server

import (
	"strings"

	"github.com/eternalApril/crescent/internal/resp"
)

// hello returns the server metadata. The requested protocol version is ignored, replies are always RESP2
func hello(req *Request) resp.Value {
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString("server"),
		resp.MakeBulkString("crescent"),
		resp.MakeBulkString("version"),
		resp.MakeBulkString(Version),
		resp.MakeBulkString("proto"),
		resp.MakeInteger(2),
		resp.MakeBulkString("id"),
		resp.MakeInteger(req.ClientID),
		resp.MakeBulkString("mode"),
		resp.MakeBulkString("standalone"),
		resp.MakeBulkString("role"),
		resp.MakeBulkString("master"),
		resp.MakeBulkString("modules"),
		resp.MakeArray(nil),
	})
}

func ping(req *Request) resp.Value {
	switch len(req.Args) {
	case 0:
		return resp.MakeSimpleString("PONG")
	case 1:
		return resp.MakeBulkBytes(req.Args[0].Str)
	default:
		return resp.MakeErrorWrongNumberOfArguments(req.Name)
	}
}

func echo(req *Request) resp.Value {
	if len(req.Args) != 1 {
		return resp.MakeErrorWrongNumberOfArguments(req.Name)
	}
	return resp.MakeBulkBytes(req.Args[0].Str)
}

// client accepts every subcommand, clients send CLIENT SETINFO right after connecting
func client(_ *Request) resp.Value {
	return resp.MakeSimpleString("OK")
}

// command implements COMMAND, COMMAND COUNT, COMMAND INFO and COMMAND DOCS
// over the commands registered in the engine
func (e *Engine) command(req *Request) resp.Value {
	if len(req.Args) == 0 {
		return e.allCommands()
	}

	sub := strings.ToUpper(string(req.Args[0].Str))
	rest := req.Args[1:]

	switch sub {
	case "COUNT":
		if len(rest) != 0 {
			return resp.MakeErrorWrongNumberOfArguments("command|count")
		}
		return resp.MakeInteger(int64(len(e.commands)))
	case "INFO":
		if len(rest) == 0 {
			return e.allCommands()
		}
		return e.commandsInfo(rest)
	case "DOCS":
		return e.commandsDocs(rest)
	default:
		return resp.MakeErrorf("unknown subcommand '%s'", truncate(string(req.Args[0].Str), 128))
	}
}
