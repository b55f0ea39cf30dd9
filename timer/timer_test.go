package timer

import (
	"testing"
	"time"
)

func TestRealClock_FiresOncePerArm(t *testing.T) {
	c := NewRealClock()
	c.Arm(5 * time.Millisecond)

	select {
	case <-c.C():
	case <-time.After(time.Second):
		t.Fatal("armed clock did not fire")
	}

	select {
	case <-c.C():
		t.Fatal("clock fired twice for a single Arm")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestRealClock_StopCancels(t *testing.T) {
	c := NewRealClock()
	c.Arm(10 * time.Millisecond)
	c.Stop()

	select {
	case <-c.C():
		t.Fatal("stopped clock fired")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock()
	if c.Fire() {
		t.Fatal("unarmed clock should not fire")
	}

	c.Arm(time.Second)
	if armed, d := c.Armed(); !armed || d != time.Second {
		t.Fatalf("expected armed for 1s, got %v %v", armed, d)
	}

	got := make(chan struct{})
	go func() {
		<-c.C()
		close(got)
	}()
	if !c.Fire() {
		t.Fatal("armed clock should fire")
	}
	<-got

	if armed, _ := c.Armed(); armed {
		t.Error("firing should disarm the clock")
	}
	if c.Arms() != 1 {
		t.Errorf("expected 1 arm, got %d", c.Arms())
	}
}

func TestManualClock_Close(t *testing.T) {
	c := NewManualClock()
	c.Close()
	c.Close()
	if _, ok := <-c.C(); ok {
		t.Error("closed clock channel should be closed")
	}
}
