package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	entries []entry
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.entries = append(r.entries, entry{level, message, keyvals})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

func TestDispatchesToAllBackends(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	Init(first, second)
	t.Cleanup(Reset)

	Info("[Test] hello", "key", 1)
	Log("[Test] plain", "key", 2)

	for _, r := range []*recorder{first, second} {
		assert.Equal(t, []entry{
			{"info", "[Test] hello", []any{"key", 1}},
			{"log", "[Test] plain", []any{"key", 2}},
		}, r.entries)
	}
}

func TestDropsBeforeInit(t *testing.T) {
	Reset()
	assert.NotPanics(t, func() {
		Debug("[Test] dropped")
		Warn("[Test] dropped")
	})
}
