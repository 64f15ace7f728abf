package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAndAdvance(t *testing.T) {
	c := Fake(epoch)
	assert.True(t, c.Now().Equal(epoch))

	c.Advance(5 * time.Second)
	assert.True(t, c.Now().Equal(epoch.Add(5*time.Second)))
}

func TestFakeTimerFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	timer := c.NewTimer(3 * time.Second)
	assert.Equal(t, 1, c.PendingCount())

	c.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("timer fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-timer.C:
		assert.True(t, at.Equal(epoch.Add(3*time.Second)))
	default:
		t.Fatal("timer did not fire")
	}

	assert.Equal(t, 0, c.PendingCount())
	assert.False(t, timer.Stop(), "stopping a fired timer reports false")
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	timer := c.NewTimer(time.Second)

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, c.PendingCount())

	c.Advance(time.Hour)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeSet(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(48 * time.Hour)

	c.Set(epoch.Add(72 * time.Hour))
	select {
	case <-ch:
	default:
		t.Fatal("Set past deadline should fire")
	}
	assert.True(t, c.Now().Equal(epoch.Add(72*time.Hour)))
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine was not woken")
	}
}

func TestReal(t *testing.T) {
	c := Real()
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	timer := c.NewTimer(time.Hour)
	assert.True(t, timer.Stop())

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("real After did not fire")
	}
}
