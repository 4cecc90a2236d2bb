package imageload

import (
	"image"
	"sync"

	"github.com/google/uuid"
)

type Result struct {
	Image        image.Image
	Format       string
	Source       string
	UsedFallback bool
	Err          error
}

func (r Result) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Pending is the completion handle of a single load request. It resolves
// exactly once; later Resolve calls are ignored.
type Pending struct {
	id     string
	once   sync.Once
	done   chan struct{}
	result Result
}

func NewPending() *Pending {
	return &Pending{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (p *Pending) ID() string {
	return p.id
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the request resolves.
func (p *Pending) Result() Result {
	<-p.done
	return p.result
}

func (p *Pending) Resolve(result Result) bool {
	resolved := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		resolved = true
	})
	return resolved
}
