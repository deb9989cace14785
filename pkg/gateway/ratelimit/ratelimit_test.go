package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 2 {
		if d := l.Acquire("e_a@b.c", now); !d.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	d := l.Acquire("e_a@b.c", now)
	if d.Allowed {
		t.Fatal("third request allowed, burst is 2")
	}
	if d.RetryAfter < 1 {
		t.Errorf("RetryAfter = %d, want >= 1", d.RetryAfter)
	}

	// One second refills one token.
	if d := l.Acquire("e_a@b.c", now.Add(time.Second)); !d.Allowed {
		t.Error("request denied after refill")
	}
}

func TestClientsAreIsolated(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Now()

	if d := l.Acquire("e_a@b.c", now); !d.Allowed {
		t.Fatal("first client denied")
	}
	if d := l.Acquire("e_a@b.c", now); d.Allowed {
		t.Fatal("first client not throttled")
	}
	if d := l.Acquire("e_other@b.c", now); !d.Allowed {
		t.Error("second client throttled by first client's bucket")
	}
}

func TestStreamConcurrencyCap(t *testing.T) {
	l := New(Config{MaxConcurrentStreams: 2})
	now := time.Now()

	d1 := l.Acquire("e_a@b.c", now)
	d2 := l.Acquire("e_a@b.c", now)
	if !d1.Allowed || !d2.Allowed {
		t.Fatal("streams denied under the cap")
	}
	if d := l.Acquire("e_a@b.c", now); d.Allowed {
		t.Fatal("third stream allowed, cap is 2")
	}

	d1.Permit.Release()
	if d := l.Acquire("e_a@b.c", now); !d.Allowed {
		t.Error("stream denied after a permit was released")
	}

	// Double release must not free a slot twice.
	d2.Permit.Release()
	d2.Permit.Release()
	a := l.Acquire("e_a@b.c", now)
	b := l.Acquire("e_a@b.c", now)
	if !a.Allowed || b.Allowed {
		t.Errorf("after double release: a=%v b=%v, want one slot", a.Allowed, b.Allowed)
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/conversations?email=a@b.c", nil)
	if got := ClientKey(r); got != "e_a@b.c" {
		t.Errorf("ClientKey = %q", got)
	}

	r = httptest.NewRequest("POST", "/api/chat", nil)
	r.RemoteAddr = "192.0.2.7:4242"
	if got := ClientKey(r); got != "a_192.0.2.7" {
		t.Errorf("ClientKey = %q", got)
	}
}

func TestStaleEntriesCollected(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, MaxEntries: 2, EntryTTL: time.Minute})
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Acquire("a", t0)
	l.Acquire("b", t0)
	l.Acquire("c", t0.Add(2*time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.m) != 1 {
		t.Errorf("entries = %d, want 1 after GC", len(l.m))
	}
	if _, ok := l.m["c"]; !ok {
		t.Error("newest client evicted")
	}
}
