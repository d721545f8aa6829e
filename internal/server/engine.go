package server

import (
	"strings"
	"time"

	"github.com/eternalApril/crescent/internal/metrics"
	"github.com/eternalApril/crescent/internal/resp"
	"go.uber.org/zap"
)

// Version is reported by HELLO
var Version = "1.0.0"

// unknownLabel is the metrics label of every command missing from the registry
const unknownLabel = "unknown"

// Engine is the command registry. It is filled before serving and only read afterwards,
// so connections share it without locking
type Engine struct {
	commands map[string]Command // Registry of available commands (the key is the command name in uppercase)
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEngine initializes the engine and registers the basic commands
func NewEngine(logger *zap.Logger, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New()
	}

	engine := Engine{
		commands: make(map[string]Command),
		logger:   logger,
		metrics:  m,
	}
	engine.registerBasicCommand()

	return &engine
}

// Register adds a new command to the engine, replacing any command with the same name.
// The command name is uppercase. COMMAND reports it with the metadata of commandRegistry,
// or with arity -1 and no flags when it has none
func (e *Engine) Register(name string, cmd Command) {
	e.commands[strings.ToUpper(name)] = cmd
}

// registerBasicCommand fills the registry with standard commands
func (e *Engine) registerBasicCommand() {
	e.Register("HELLO", CommandFunc(hello))
	e.Register("PING", CommandFunc(ping))
	e.Register("ECHO", CommandFunc(echo))
	e.Register("CLIENT", CommandFunc(client))
	e.Register("COMMAND", CommandFunc(e.command))
}

// Execute finds the command by name and executes it with the passed arguments.
// If the command is not found, returns an error in the RESP format
func (e *Engine) Execute(req *Request) resp.Value {
	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", req.Name),
			zap.Int("args_count", len(req.Args)),
			zap.Int64("client_id", req.ClientID),
		)
	}

	start := time.Now()

	cmd, ok := e.commands[req.Name]
	if !ok {
		e.metrics.ObserveCommand(unknownLabel, true, time.Since(start))
		return resp.MakeErrorf("unknown command '%s'", truncate(req.Name, 128))
	}

	res := cmd.Execute(req)
	e.metrics.ObserveCommand(req.Name, res.Type == resp.TypeError, time.Since(start))

	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
