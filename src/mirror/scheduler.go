package mirror

import (
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// Scheduler drives the rounds of one stream type. It ticks at a fixed period
// and can be stopped and reset while a long round is in flight.
type Scheduler struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to the round loop
	resetCh      chan time.Duration //receives instruction to reset the timer
	stopCh       chan struct{}      //receives instruction to stop the timer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          bool
}

func NewScheduler(timerFactory timerFactory) *Scheduler {
	return &Scheduler{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func NewIntervalScheduler() *Scheduler {
	return NewScheduler(func(period time.Duration) <-chan time.Time {
		if period == 0 {
			return nil
		}
		return time.After(period)
	})
}

func (s *Scheduler) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		s.set = true
		return s.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			//the round loop may be gone already at shutdown
			select {
			case s.tickCh <- struct{}{}:
			case <-s.shutdownCh:
				return
			}
			s.set = false
			timer = setTimer(init)
		case t := <-s.resetCh:
			timer = setTimer(t)
		case <-s.stopCh:
			timer = nil
			s.set = false
		case <-s.shutdownCh:
			s.set = false
			return
		}
	}
}

func (s *Scheduler) Shutdown() {
	close(s.shutdownCh)
}
