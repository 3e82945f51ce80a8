package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestNoop_AlwaysAllows(t *testing.T) {
	var lim Noop
	for i := 0; i < 100; i++ {
		allowed, retry := lim.Allow("any")
		if !allowed || retry != 0 {
			t.Errorf("Noop.Allow: want allowed=true retry=0, got allowed=%v retry=%d", allowed, retry)
		}
	}
}

func TestInMemory_AllowsWithinLimit(t *testing.T) {
	lim := NewInMemory(3, time.Minute)
	key := "client1"
	for i := 0; i < 3; i++ {
		allowed, retry := lim.Allow(key)
		if !allowed {
			t.Errorf("request %d: expected allowed", i+1)
		}
		if retry != 0 {
			t.Errorf("request %d: expected retry 0, got %d", i+1, retry)
		}
	}
}

func TestInMemory_RejectsOverLimit(t *testing.T) {
	lim := NewInMemory(2, time.Minute)
	key := "client1"
	lim.Allow(key)
	lim.Allow(key)
	allowed, retryAfter := lim.Allow(key)
	if allowed {
		t.Error("expected not allowed after limit exceeded")
	}
	if retryAfter <= 0 {
		t.Errorf("expected positive Retry-After, got %d", retryAfter)
	}
}

func TestInMemory_DifferentKeysIndependent(t *testing.T) {
	lim := NewInMemory(1, time.Minute)
	lim.Allow("a")
	allowedB, _ := lim.Allow("b")
	if !allowedB {
		t.Error("different key should be allowed")
	}
	allowedA, _ := lim.Allow("a")
	if allowedA {
		t.Error("same key over limit should be rejected")
	}
}

func TestInMemory_Refills(t *testing.T) {
	now := time.Unix(1000, 0)
	lim := NewInMemory(2, time.Minute)
	lim.nowFunc = func() time.Time { return now }
	lim.Allow("k")
	lim.Allow("k")
	allowed, retry := lim.Allow("k")
	if allowed || retry != 30 {
		t.Errorf("over limit: allowed=%v retry=%d want false/30", allowed, retry)
	}
	now = now.Add(31 * time.Second)
	if allowed, _ := lim.Allow("k"); !allowed {
		t.Error("expected a token after the refill interval")
	}
}

func TestInMemory_PrunesRefilledKeys(t *testing.T) {
	now := time.Unix(1000, 0)
	lim := NewInMemory(2, time.Minute)
	lim.nowFunc = func() time.Time { return now }
	for i := 0; i < maxIdleKeys; i++ {
		lim.Allow(fmt.Sprintf("player:%d", i))
	}
	now = now.Add(2 * time.Minute)
	if allowed, _ := lim.Allow("player:late"); !allowed {
		t.Fatal("expected a fresh key to be allowed")
	}
	if n := len(lim.limiters); n != 1 {
		t.Errorf("expected refilled keys to be pruned, %d left", n)
	}
}
