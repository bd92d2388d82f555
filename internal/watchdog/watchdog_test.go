package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder() (chan string, func(string)) {
	ch := make(chan string, 4)
	return ch, func(name string) { ch <- name }
}

func TestTimeoutTerminates(t *testing.T) {
	const timeout = 100 * time.Millisecond
	fired, term := recorder()
	w := New(Options{Timeout: timeout, Terminate: term})
	defer w.Shutdown()

	start := time.Now()
	w.Announce("System.Void Sample.C::Spin()")

	select {
	case name := <-fired:
		elapsed := time.Since(start)
		assert.Equal(t, "System.Void Sample.C::Spin()", name)
		assert.GreaterOrEqual(t, elapsed, timeout)
		assert.Less(t, elapsed, 2*timeout, "fires within one interval of the last announcement")
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire")
	}

	// Terminate runs once; later announcements are ignored.
	w.Announce("after")
	select {
	case name := <-fired:
		t.Fatalf("second terminate for %q", name)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestAnnounceKeepsAlive(t *testing.T) {
	fired, term := recorder()
	w := New(Options{Timeout: 150 * time.Millisecond, Terminate: term})

	stop := time.After(600 * time.Millisecond)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-tick.C:
			w.Announce("unit")
		case <-stop:
			break loop
		}
	}
	w.Shutdown()

	select {
	case name := <-fired:
		t.Fatalf("terminated while announcing: %q", name)
	default:
	}
}

func TestShutdownIdempotent(t *testing.T) {
	fired, term := recorder()
	w := New(Options{Timeout: 50 * time.Millisecond, Terminate: term})
	w.Announce("first")

	require.NotPanics(t, w.Shutdown)
	require.NotPanics(t, w.Shutdown)
	w.Announce("late")

	select {
	case <-w.done:
	default:
		t.Fatal("monitor still running after Shutdown")
	}
	select {
	case name := <-fired:
		t.Fatalf("terminated after shutdown: %q", name)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestDefaults(t *testing.T) {
	w := New(Options{})
	defer w.Shutdown()
	assert.Equal(t, DefaultTimeout, w.timeout)
	assert.NotNil(t, w.terminate)
	assert.Equal(t, 2, ExitTimeout)
}
