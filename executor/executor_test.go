package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raniellyferreira/magicdb/command"
	"github.com/raniellyferreira/magicdb/storage"
	"github.com/stretchr/testify/assert"
)

type recordingSender struct {
	addr    string
	payload string
	err     error
}

func (s *recordingSender) Send(_ context.Context, addr string, payload []byte) error {
	s.addr = addr
	s.payload = string(payload)
	return s.err
}

func TestExecutor_StoreSemantics(t *testing.T) {
	ctx := context.Background()
	e := New(storage.NewMemory())

	assert.Equal(t, "elder", e.Apply(ctx, command.Summon{Key: "wand", Value: "elder"}))
	assert.Equal(t, "elder", e.Apply(ctx, command.Conjure{Key: "wand"}))

	assert.Equal(t, "unknown incantation: cloak", e.Apply(ctx, command.Conjure{Key: "cloak"}))

	e.Apply(ctx, command.Summon{Key: "wand", Value: "holly"})
	assert.Equal(t, "holly", e.Apply(ctx, command.Conjure{Key: "wand"}))

	e.Apply(ctx, command.Summon{Key: "stone", Value: "resurrection"})
	assert.Equal(t, "dispelled wand", e.Apply(ctx, command.Dispel{Key: "wand"}))
	assert.Equal(t, "unknown incantation: wand", e.Apply(ctx, command.Conjure{Key: "wand"}))

	// Dispelling an absent key is not an error and leaves other keys alone
	assert.Equal(t, "dispelled wand", e.Apply(ctx, command.Dispel{Key: "wand"}))
	assert.Equal(t, "resurrection", e.Apply(ctx, command.Conjure{Key: "stone"}))
}

func TestExecutor_Unknown(t *testing.T) {
	stor := storage.NewMemory()
	e := New(stor)

	assert.Equal(t, "unknown command", e.Apply(context.Background(), command.Unknown{}))
	assert.Equal(t, int64(0), stor.KeyCount())
}

func TestExecutor_Handle(t *testing.T) {
	e := New(storage.NewMemory())
	ctx := context.Background()

	assert.Equal(t, "v", string(e.Handle(ctx, []byte("summon k as v\n"))))
	assert.Equal(t, "v", string(e.Handle(ctx, []byte("CONJURE k"))))
	assert.Equal(t, "unknown command", string(e.Handle(ctx, []byte("hello"))))
	assert.Equal(t, int64(3), e.CommandCount())
}

func TestExecutor_SendTo(t *testing.T) {
	ctx := context.Background()

	e := New(storage.NewMemory())
	assert.Equal(t, "unknown command", e.Apply(ctx, command.SendTo{Target: "h:1", Value: "x"}))

	sender := &recordingSender{}
	e = New(storage.NewMemory(), WithSender(sender))
	assert.Equal(t, "sent to h:1", e.Apply(ctx, command.SendTo{Target: "h:1", Value: "x"}))
	assert.Equal(t, "h:1", sender.addr)
	assert.Equal(t, "x", sender.payload)

	sender.err = errors.New("boom")
	assert.Equal(t, "send to h:1 failed: boom", e.Apply(ctx, command.SendTo{Target: "h:1", Value: "x"}))
}

func TestExecutor_Incant(t *testing.T) {
	ctx := context.Background()
	stor := storage.NewMemory()
	e := New(stor)

	assert.Equal(t, "7", e.Apply(ctx, command.Incant{Script: "return 3 + 4"}))
	assert.Equal(t, "v", e.Apply(ctx, command.Incant{Script: "return magic.summon('k', 'v')"}))
	assert.Equal(t, "v", e.Apply(ctx, command.Conjure{Key: "k"}))
	assert.Equal(t, "(nil)", e.Apply(ctx, command.Incant{Script: "return magic.conjure('nope')"}))
	assert.Equal(t, "a\nb", e.Apply(ctx, command.Incant{Script: "return {'a', 'b'}"}))
	assert.Contains(t, e.Apply(ctx, command.Incant{Script: "error('bad')"}), "incantation failed:")
}

func TestRender(t *testing.T) {
	assert.Equal(t, "true", render(true))
	assert.Equal(t, "1.5", render(1.5))
	assert.Equal(t, "a=1\nb=x", render(map[string]interface{}{"b": "x", "a": int64(1)}))
}

func TestExecutor_IncantTimeout(t *testing.T) {
	e := New(storage.NewMemory(), WithScriptTimeout(100*time.Millisecond))

	start := time.Now()
	reply := e.Apply(context.Background(), command.Incant{Script: "while true do end"})

	assert.Contains(t, reply, "incantation failed:")
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, "ok", e.Apply(context.Background(), command.Incant{Script: "return 'ok'"}))
}

func TestExecutor_IncantStopsWithContext(t *testing.T) {
	e := New(storage.NewMemory(), WithScriptTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Contains(t, e.Apply(ctx, command.Incant{Script: "while true do end"}), "incantation failed:")
}
