package diag

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/bus"
)

func TestCapture(t *testing.T) {
	b := bus.New()
	ch, cancel := b.Subscribe(bus.TopicDiagnostic, 4)
	defer cancel()

	p := New(b, 0, nil)
	p.Capture(nil)
	p.Capture(errors.New("boom"))

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Message)
	assert.False(t, entries[0].Panic)
	assert.NotEmpty(t, entries[0].ID)

	select {
	case evt := <-ch:
		assert.Equal(t, entries[0], evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("no diagnostic event")
	}
}

func TestRecover(t *testing.T) {
	p := New(nil, 0, nil)

	func() {
		defer p.Recover()
		panic("index out of range")
	}()
	func() {
		defer p.Recover()
	}()

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Panic)
	assert.Equal(t, "index out of range", entries[0].Message)
	assert.Contains(t, entries[0].Stack, "goroutine")
}

func TestGoRecoversPanics(t *testing.T) {
	p := New(nil, 0, nil)
	p.Go(func() { panic(errors.New("worker died")) })

	require.Eventually(t, func() bool { return len(p.Entries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "worker died", p.Entries()[0].Message)
}

func TestCapacity(t *testing.T) {
	p := New(nil, 3, nil)
	for i := range 5 {
		p.Capture(fmt.Errorf("err %d", i))
	}
	entries := p.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "err 2", entries[0].Message)
	assert.Equal(t, "err 4", entries[2].Message)
}

func TestDismiss(t *testing.T) {
	p := New(nil, 0, nil)
	p.Capture(errors.New("a"))
	p.Capture(errors.New("b"))
	first := p.Entries()[0]

	require.NoError(t, p.Dismiss(first.ID))
	assert.ErrorIs(t, p.Dismiss(first.ID), ErrUnknownEntry)
	require.Len(t, p.Entries(), 1)
	assert.Equal(t, "b", p.Entries()[0].Message)

	require.NoError(t, p.Dismiss(""))
	assert.Empty(t, p.Entries())
}
