package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("alice"); ok {
		t.Fatalf("empty registry reported alice online")
	}

	r.Register("alice", "c1")
	if got, ok := r.Lookup("alice"); !ok || got != "c1" {
		t.Fatalf("lookup=%q,%v", got, ok)
	}

	r.Register("alice", "c2")
	if got, _ := r.Lookup("alice"); got != "c2" {
		t.Fatalf("reconnect should replace entry, got %q", got)
	}

	if r.Unregister("alice", "c1") {
		t.Fatalf("stale connection must not evict the current one")
	}
	if got, ok := r.Lookup("alice"); !ok || got != "c2" {
		t.Fatalf("entry lost after stale unregister: %q,%v", got, ok)
	}

	if !r.Unregister("alice", "c2") {
		t.Fatalf("current connection unregister failed")
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Fatalf("alice still online")
	}
}

func TestRegisterIgnoresEmptyIDs(t *testing.T) {
	r := NewRegistry()
	r.Register("", "c1")
	r.Register("bob", "")
	if r.Len() != 0 {
		t.Fatalf("len=%d want 0", r.Len())
	}
}

func TestOnlineSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("carol", "3")
	r.Register("alice", "1")
	r.Register("bob", "2")
	got := fmt.Sprint(r.Online())
	if got != "[alice bob carol]" {
		t.Fatalf("online=%s", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%10)
			conn := fmt.Sprintf("c%d", i)
			r.Register(user, conn)
			r.Lookup(user)
			r.Unregister(user, conn)
			_ = r.Online()
		}(i)
	}
	wg.Wait()
	if r.Len() > 10 {
		t.Fatalf("len=%d exceeds number of users", r.Len())
	}
}
