package flow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocksSerializeSameID(t *testing.T) {
	locks := newSessionLocks()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len())
}

func TestSessionLocksIndependentIDs(t *testing.T) {
	locks := newSessionLocks()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, locks.Len())
	unlockA()
	assert.Equal(t, 0, locks.Len())
}
