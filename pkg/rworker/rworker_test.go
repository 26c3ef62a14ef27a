package rworker

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_Limit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		jobs  int
		want  int32
	}{
		{name: "one", limit: 1, jobs: 10, want: 1},
		{name: "three", limit: 3, jobs: 10, want: 3},
		{name: "zero_means_one", limit: 0, jobs: 4, want: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var inFlight, peak, done int32
			g := New(test.limit, nil)
			for i := 0; i < test.jobs; i++ {
				g.Go(func() error {
					n := atomic.AddInt32(&inFlight, 1)
					for {
						p := atomic.LoadInt32(&peak)
						if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					atomic.AddInt32(&inFlight, -1)
					atomic.AddInt32(&done, 1)
					return nil
				})
			}
			g.Wait()
			if done != int32(test.jobs) {
				t.Errorf("finished jobs got: %v, expected: %v", done, test.jobs)
			}
			if peak > test.want {
				t.Errorf("jobs in flight got: %v, expected at most: %v", peak, test.want)
			}
		})
	}
}

func TestGroup_Errors(t *testing.T) {
	errCh := make(chan error, 1)
	g := New(2, errCh)
	for i := 0; i < 5; i++ {
		g.Go(func() error { return errors.New("failed") })
	}
	g.Wait()
	if len(errCh) != 1 {
		t.Errorf("buffered errors got: %v, expected: %v", len(errCh), 1)
	}
}
