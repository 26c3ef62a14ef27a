// Package rworker runs jobs with a cap on how many are in flight.
package rworker

import "sync"

type Group struct {
	wg    sync.WaitGroup
	rate  chan struct{}
	errCh chan<- error
}

// New returns a Group running at most limit jobs at once. Job errors are sent
// to errCh without blocking, a full or nil channel drops them.
func New(limit int, errCh chan<- error) *Group {
	if limit < 1 {
		limit = 1
	}
	return &Group{rate: make(chan struct{}, limit), errCh: errCh}
}

func (g *Group) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.rate <- struct{}{}
		defer func() { <-g.rate }()
		if err := fn(); err != nil && g.errCh != nil {
			select {
			case g.errCh <- err:
			default:
			}
		}
	}()
}

func (g *Group) Wait() {
	g.wg.Wait()
}
