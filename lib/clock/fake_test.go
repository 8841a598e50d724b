// Copyright 2026 The OpenBridge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeClockAfter(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	ch := fake.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	fake.Advance(5 * time.Second)

	select {
	case fired := <-ch:
		if !fired.Equal(start.Add(5 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, start.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeClockAfterFuncOrder(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false for a pending timer")
	}
	fake.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}
}

func TestFakeClockTicker(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Ticks beyond the channel's capacity of 1 are dropped, so a
	// single large advance yields one pending tick.
	fake.Advance(3 * time.Second)

	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not tick")
	}

	ticker.Stop()
	fake.Advance(3 * time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker ticked")
	default:
	}
}
