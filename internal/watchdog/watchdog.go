// Package watchdog terminates the process when analysis stops making
// progress.
package watchdog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cilscan.watchdog")

const (
	// DefaultTimeout is the longest a single unit of work may run.
	DefaultTimeout = 30 * time.Second

	// ExitTimeout is the process exit status after a timeout.
	ExitTimeout = 2

	joinGrace = time.Second
)

// Options configures a Watchdog.
type Options struct {
	Timeout time.Duration // DefaultTimeout when zero

	// Terminate is called from the monitor goroutine when the deadline
	// passes, with the name of the last announced unit of work. The default
	// logs and exits with ExitTimeout.
	Terminate func(name string)
}

// Watchdog runs one monitor goroutine. Announce resets its deadline; if the
// deadline passes first, Terminate runs once.
type Watchdog struct {
	timeout   time.Duration
	terminate func(string)

	mu       sync.Mutex
	name     string
	deadline time.Time
	running  bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// New starts a watchdog. The first deadline is one timeout from now.
func New(opts Options) *Watchdog {
	w := &Watchdog{
		timeout:   opts.Timeout,
		terminate: opts.Terminate,
		running:   true,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if w.timeout <= 0 {
		w.timeout = DefaultTimeout
	}
	if w.terminate == nil {
		w.terminate = exit
	}
	w.deadline = time.Now().Add(w.timeout)
	go w.monitor()
	return w
}

func exit(name string) {
	log.Criticalf("timed out running %s", name)
	fmt.Fprintf(os.Stderr, "Timed out running %s\n", name)
	os.Exit(ExitTimeout)
}

// Announce records the unit of work about to start and resets the deadline.
// It is a no-op after Shutdown.
func (w *Watchdog) Announce(name string) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.name = name
	w.deadline = time.Now().Add(w.timeout)
	w.mu.Unlock()
	w.signal()
}

// Shutdown stops the monitor and waits for it to exit. It may be called
// more than once. A monitor that does not exit within the grace period is
// an internal error and panics.
func (w *Watchdog) Shutdown() {
	w.once.Do(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.signal()

		select {
		case <-w.done:
		case <-time.After(joinGrace):
			panic("watchdog: monitor did not terminate")
		}
	})
}

func (w *Watchdog) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watchdog) monitor() {
	defer close(w.done)
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	for {
		select {
		case <-w.wake:
		case <-timer.C:
		}

		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			return
		}
		left := time.Until(w.deadline)
		name := w.name
		if left <= 0 {
			w.running = false
			w.mu.Unlock()
			w.terminate(name)
			return
		}
		w.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(left)
	}
}
