package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 10 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, 100, lim)

	tooshort := 1 * time.Millisecond

	client := "203.0.113.7"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	interval := time.Hour
	r := NewLimiter(1, 100, Every(interval))

	if !r.Check("client-a") {
		t.Fatal("first request of client-a should pass")
	}
	if r.Check("client-a") {
		t.Fatal("second request of client-a should be limited")
	}
	if !r.Check("client-b") {
		t.Fatal("client-b has its own bucket and should pass")
	}
}
