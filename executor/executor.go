// Package executor applies parsed commands to the store and renders the
// text reply sent back to the client.
package executor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/magicdb/command"
	"github.com/raniellyferreira/magicdb/lua"
	"github.com/raniellyferreira/magicdb/storage"
)

// DefaultScriptTimeout bounds one INCANT script
const DefaultScriptTimeout = 5 * time.Second

// Sender delivers a payload to an arbitrary address
type Sender interface {
	Send(ctx context.Context, addr string, payload []byte) error
}

// Executor applies commands to a store
type Executor struct {
	storage storage.Store
	lua     *lua.Engine
	sender  Sender

	scriptTimeout time.Duration

	commandCount int64
}

// Option configures an Executor
type Option func(*Executor)

// WithSender enables "SEND TO <address> <value>" in direct mode
func WithSender(sender Sender) Option {
	return func(e *Executor) {
		e.sender = sender
	}
}

// WithScriptTimeout bounds how long an INCANT script may run; 0 disables
func WithScriptTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout >= 0 {
			e.scriptTimeout = timeout
		}
	}
}

// New creates an executor bound to storage
func New(storage storage.Store, opts ...Option) *Executor {
	e := &Executor{
		storage:       storage,
		lua:           lua.NewEngine(storage),
		scriptTimeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle parses payload and applies it
func (e *Executor) Handle(ctx context.Context, payload []byte) []byte {
	return []byte(e.Apply(ctx, command.Parse(string(payload))))
}

// Apply executes cmd and returns the reply text
func (e *Executor) Apply(ctx context.Context, cmd command.Command) string {
	atomic.AddInt64(&e.commandCount, 1)

	switch c := cmd.(type) {
	case command.Summon:
		e.storage.Set(c.Key, c.Value)
		return c.Value

	case command.Conjure:
		if value, ok := e.storage.Get(c.Key); ok {
			return value
		}
		return "unknown incantation: " + c.Key

	case command.Dispel:
		e.storage.Del(c.Key)
		return "dispelled " + c.Key

	case command.SendTo:
		if e.sender == nil {
			return "unknown command"
		}
		if err := e.sender.Send(ctx, c.Target, []byte(c.Value)); err != nil {
			return fmt.Sprintf("send to %s failed: %v", c.Target, err)
		}
		return "sent to " + c.Target

	case command.Incant:
		if ctx == nil {
			ctx = context.Background()
		}
		if e.scriptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.scriptTimeout)
			defer cancel()
		}
		result, err := e.lua.Eval(ctx, c.Script)
		if err != nil {
			return fmt.Sprintf("incantation failed: %v", err)
		}
		return render(result)

	default:
		return "unknown command"
	}
}

// CommandCount returns the number of applied commands
func (e *Executor) CommandCount() int64 {
	return atomic.LoadInt64(&e.commandCount)
}

// render turns a script result into reply text
func render(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return "(nil)"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = render(item)
		}
		return strings.Join(parts, "\n")
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + "=" + render(v[key])
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}
