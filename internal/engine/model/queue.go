package model

import (
	"sync"

	"github.com/Faultbox/modelkit/internal/engine/importer"
)

// Imported is the outcome of one queued import.
type Imported struct {
	Path  string
	Scene *importer.Scene
	Err   error
}

// ImportQueue runs imports off the context thread. Finished scenes are
// received from Results and built on the context thread.
type ImportQueue struct {
	importFn func(path string) (*importer.Scene, error)
	results  chan Imported
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewImportQueue returns a queue importing with l.
func NewImportQueue(l *Loader) *ImportQueue {
	return newImportQueue(l.Import)
}

func newImportQueue(fn func(string) (*importer.Scene, error)) *ImportQueue {
	return &ImportQueue{
		importFn: fn,
		results:  make(chan Imported, 1),
		done:     make(chan struct{}),
	}
}

// Load starts importing path. It is a no-op after Close.
func (q *ImportQueue) Load(path string) {
	select {
	case <-q.done:
		return
	default:
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		scene, err := q.importFn(path)
		select {
		case q.results <- Imported{Path: path, Scene: scene, Err: err}:
		case <-q.done:
		}
	}()
}

// Results delivers finished imports.
func (q *ImportQueue) Results() <-chan Imported { return q.results }

// Close abandons undelivered results and waits for running imports to
// return.
func (q *ImportQueue) Close() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}
