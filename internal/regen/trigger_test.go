package regen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_NotifyNeverBlocks(t *testing.T) {
	t.Parallel()

	trigger := NewTrigger()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				trigger.Notify()
			}
		}()
	}
	wg.Wait()

	// all sends folded into one buffered signal
	assert.Len(t, trigger.C(), 1)
}

func TestTrigger_Close(t *testing.T) {
	t.Parallel()

	trigger := NewTrigger()
	trigger.Notify()
	trigger.Close()
	trigger.Close()
	trigger.Notify()

	_, ok := <-trigger.C()
	assert.True(t, ok, "signal buffered before close is delivered")
	_, ok = <-trigger.C()
	assert.False(t, ok)
}

func TestTrigger_ConcurrentNotifyAndClose(t *testing.T) {
	t.Parallel()

	trigger := NewTrigger()
	go func() {
		for range trigger.C() {
		}
	}()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				trigger.Notify()
			}
		}()
	}
	trigger.Close()
	wg.Wait()
}
