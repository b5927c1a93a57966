package notify

import (
	"context"
	"sync"
)

// Recorder keeps every request in memory. Fail, when set, is returned from Notify
// after the request has been recorded.
type Recorder struct {
	mu   sync.Mutex
	reqs []Request
	Fail error
}

func (r *Recorder) Notify(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.Fail
}

func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.reqs...)
}

// Kinds lists the kinds recorded so far, in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.reqs))
	for i, req := range r.reqs {
		out[i] = req.Kind
	}
	return out
}
