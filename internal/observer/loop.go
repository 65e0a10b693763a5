package observer

import "sync"

type task struct {
	run  func()
	drop func()
}

// Loop is a single-goroutine execution context. Posted tasks run one at a
// time in posting order. Posting never blocks.
type Loop struct {
	mu     sync.Mutex
	queue  []task
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues run. It returns false, without running or dropping anything,
// when the loop is closed. If the loop closes before run gets its turn,
// drop is called instead.
func (l *Loop) Post(run, drop func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task{run: run, drop: drop})
	l.mu.Unlock()
	l.signal()
	return true
}

// Close stops the loop. The task currently running finishes; queued tasks
// are dropped. Close does not wait and may be called from a task.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for range l.wake {
		for {
			l.mu.Lock()
			if l.closed {
				rest := l.queue
				l.queue = nil
				l.mu.Unlock()
				for _, t := range rest {
					if t.drop != nil {
						t.drop()
					}
				}
				return
			}
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			t := l.queue[0]
			l.queue[0] = task{}
			l.queue = l.queue[1:]
			l.mu.Unlock()
			t.run()
		}
	}
}
