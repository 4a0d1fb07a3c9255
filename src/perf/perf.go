package perf

import (
	"context"
	"sync"
	"time"
)

// RequestPerf records how long the parts of one page request took. Blocks
// may be started from several goroutines at once, as happens when a page
// loads its data concurrently.
type RequestPerf struct {
	Route  string
	Path   string // the path actually matched
	Method string
	Start  time.Time
	End    time.Time

	m      sync.Mutex
	blocks []PerfBlock
}

func MakeNewRequestPerf(route string, method string, path string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Path:   path,
		Method: method,
	}
}

// EndRequest closes any blocks still open and stamps the end time.
func (rp *RequestPerf) EndRequest() {
	rp.m.Lock()
	defer rp.m.Unlock()

	now := time.Now()
	for i := range rp.blocks {
		if rp.blocks[i].End.IsZero() {
			rp.blocks[i].End = now
		}
	}
	rp.End = now
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	now := time.Now()
	rp.m.Lock()
	defer rp.m.Unlock()
	rp.blocks = append(rp.blocks, PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	})
}

// StartBlock opens a block and returns the function that closes it.
func (rp *RequestPerf) StartBlock(category, description string) func() {
	rp.m.Lock()
	defer rp.m.Unlock()

	idx := len(rp.blocks)
	rp.blocks = append(rp.blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})

	return func() {
		rp.m.Lock()
		defer rp.m.Unlock()
		if rp.blocks[idx].End.IsZero() {
			rp.blocks[idx].End = time.Now()
		}
	}
}

func (rp *RequestPerf) Record() RequestRecord {
	rp.m.Lock()
	defer rp.m.Unlock()

	blocks := make([]PerfBlock, len(rp.blocks))
	copy(blocks, rp.blocks)
	return RequestRecord{
		Route:  rp.Route,
		Path:   rp.Path,
		Method: rp.Method,
		Start:  rp.Start,
		End:    rp.End,
		Blocks: blocks,
	}
}

// RequestRecord is a finished request, safe to copy around.
type RequestRecord struct {
	Route  string      `json:"route"`
	Path   string      `json:"path"`
	Method string      `json:"method"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Blocks []PerfBlock `json:"blocks"`
}

func (r *RequestRecord) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r *RequestRecord) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(r.Start).Nanoseconds()) / 1000 / 1000
}

type PerfBlock struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

type PerfStorage struct {
	AllRequests []RequestRecord
}

type PerfCollector struct {
	In          chan<- RequestRecord
	Done        <-chan struct{}
	RequestCopy chan<- (chan<- PerfStorage)
}

// RunPerfCollector keeps the last capacity finished requests in memory until
// ctx is canceled.
func RunPerfCollector(ctx context.Context, capacity int) *PerfCollector {
	in := make(chan RequestRecord)
	done := make(chan struct{})
	requestCopy := make(chan (chan<- PerfStorage))

	var storage PerfStorage

	go func() {
		defer close(done)

		for {
			select {
			case record := <-in:
				storage.AllRequests = append(storage.AllRequests, record)
				if over := len(storage.AllRequests) - capacity; over > 0 {
					storage.AllRequests = append([]RequestRecord(nil), storage.AllRequests[over:]...)
				}
			case resultChan := <-requestCopy:
				copied := PerfStorage{AllRequests: make([]RequestRecord, len(storage.AllRequests))}
				copy(copied.AllRequests, storage.AllRequests)
				resultChan <- copied
			case <-ctx.Done():
				return
			}
		}
	}()

	return &PerfCollector{
		In:          in,
		Done:        done,
		RequestCopy: requestCopy,
	}
}

func (perfCollector *PerfCollector) SubmitRun(run *RequestPerf) {
	select {
	case perfCollector.In <- run.Record():
	case <-perfCollector.Done:
	}
}

func (perfCollector *PerfCollector) GetPerfCopy() *PerfStorage {
	resultChan := make(chan PerfStorage, 1)
	select {
	case perfCollector.RequestCopy <- resultChan:
	case <-perfCollector.Done:
		return &PerfStorage{}
	}
	perfStorageCopy := <-resultChan
	return &perfStorageCopy
}
