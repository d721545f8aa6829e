package server

import (
	"github.com/eternalApril/crescent/internal/resp"
)

// Request is a validated command request: an uppercased name and its bulk string arguments
type Request struct {
	Name     string
	Args     []resp.Value
	ClientID int64
}

// Command handles one request and returns the complete reply
type Command interface {
	Execute(req *Request) resp.Value
}

// CommandFunc adapts a function to Command
type CommandFunc func(req *Request) resp.Value

func (c CommandFunc) Execute(req *Request) resp.Value {
	return c(req)
}
