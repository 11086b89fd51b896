package rooms

import "sync"

// Loop is the single-writer command queue of one room. Every mutating
// operation on the room, its game and its dispatcher runs as a posted
// command, in FIFO order, on one goroutine.
type Loop struct {
	mu     sync.Mutex
	cmds   chan func()
	closed bool
	done   chan struct{}
}

// NewLoop starts the loop goroutine.
func NewLoop(buffer int) *Loop {
	l := &Loop{
		cmds: make(chan func(), buffer),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for cmd := range l.cmds {
		cmd()
	}
}

// Post enqueues a command. Returns false after Close; late timer callbacks
// land here and are dropped on purpose.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.cmds <- f
	return true
}

// Run posts a command and waits for it to finish.
func (l *Loop) Run(f func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		f()
	}) {
		return false
	}
	<-done
	return true
}

// Close stops accepting commands, drains the pending ones and waits for the
// goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.cmds)
	l.mu.Unlock()
	<-l.done
}
