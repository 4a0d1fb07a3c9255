package perf

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBlocks(t *testing.T) {
	rp := MakeNewRequestPerf("Watch", "GET", "/watch/1")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			end := rp.StartBlock("API", fmt.Sprintf("load %d", i))
			end()
			end()
		}(i)
	}
	wg.Wait()

	open := rp.StartBlock("TEMPLATE", "render")
	_ = open
	rp.Checkpoint("NOTE", "checkpoint")
	rp.EndRequest()

	record := rp.Record()
	require.Len(t, record.Blocks, 5)
	for _, block := range record.Blocks {
		assert.False(t, block.End.IsZero(), block.Description)
		assert.GreaterOrEqual(t, block.DurationMs(), 0.0)
	}
	assert.GreaterOrEqual(t, record.Duration(), record.Blocks[0].Duration())
}

func TestCollector(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	collector := RunPerfCollector(ctx, 2)

	for _, path := range []string{"/a", "/b", "/c"} {
		rp := MakeNewRequestPerf("Route", "GET", path)
		rp.EndRequest()
		collector.SubmitRun(rp)
	}

	storage := collector.GetPerfCopy()
	require.Len(t, storage.AllRequests, 2)
	assert.Equal(t, "/b", storage.AllRequests[0].Path)
	assert.Equal(t, "/c", storage.AllRequests[1].Path)

	cancel()
	<-collector.Done

	// Nothing blocks once the collector has stopped.
	collector.SubmitRun(MakeNewRequestPerf("Route", "GET", "/d"))
	assert.Empty(t, collector.GetPerfCopy().AllRequests)
}
