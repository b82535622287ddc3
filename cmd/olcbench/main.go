// Command olcbench runs a pool contention scenario modelled on spec.md §8
// end to end: a pool of pages, writers repeatedly locking a page
// exclusively and incrementing its counter, readers repeatedly validating
// optimistic reads, reporting elapsed time, read/write counts and the
// final free-list size.
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/m-mueller678/olc-utils"
	"github.com/m-mueller678/olc-utils/internal/config"
)

type benchPage struct {
	counter [8]byte
	_       [56]byte
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg := zap.NewDevelopmentConfig()
	log, err := logCfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting benchmark",
		zap.Int("poolCapacity", cfg.PoolCapacity),
		zap.Int("writers", cfg.WriterCount),
		zap.Int("readers", cfg.ReaderCount),
		zap.Int("iterationsPerRun", cfg.IterationsPerRun),
		zap.Bool("useBackoff", cfg.UseBackoff),
	)

	bm := olc.NewBufferManager[benchPage](cfg.PoolCapacity)

	pids := make([]olc.PageId, cfg.PoolCapacity)
	guards := make([]*olc.GuardX[benchPage], cfg.PoolCapacity)
	for i := range guards {
		guards[i] = bm.Alloc()
		pids[i] = guards[i].PageId()
	}
	for _, g := range guards {
		g.Dealloc()
	}

	var reads, writes uint64
	start := time.Now()

	var eg errgroup.Group
	for w := 0; w < cfg.WriterCount; w++ {
		w := w
		eg.Go(func() error {
			for i := 0; i < cfg.IterationsPerRun; i++ {
				pid := pids[(w+i)%len(pids)]
				runWriter(bm, pid, cfg.UseBackoff)
				atomic.AddUint64(&writes, 1)
			}
			return nil
		})
	}

	var readerWg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < cfg.ReaderCount; r++ {
		r := r
		readerWg.Add(1)
		go func() {
			defer readerWg.Done()
			i := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				pid := pids[(r+i)%len(pids)]
				runReader(bm, pid, cfg.UseBackoff)
				atomic.AddUint64(&reads, 1)
				i++
			}
		}()
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	close(stop)
	readerWg.Wait()

	elapsed := time.Since(start)
	log.Info("benchmark complete",
		zap.Duration("elapsed", elapsed),
		zap.Uint64("writes", atomic.LoadUint64(&writes)),
		zap.Uint64("reads", atomic.LoadUint64(&reads)),
		zap.Int("finalFreeListSize", bm.FreeCount()),
	)
	return nil
}

func runWriter(bm *olc.BufferManager[benchPage], pid olc.PageId, useBackoff bool) {
	do := func() int {
		g := bm.LockExclusive(pid)
		defer g.Release()
		p := g.Mut()
		var v uint64
		for i, b := range p.counter {
			v |= uint64(b) << (8 * i)
		}
		v++
		for i := range p.counter {
			p.counter[i] = byte(v >> (8 * i))
		}
		return 0
	}
	if useBackoff {
		olc.RepeatWithBackoff(olc.DefaultBackoff(), do)
		return
	}
	do()
}

func runReader(bm *olc.BufferManager[benchPage], pid olc.PageId, useBackoff bool) {
	do := func() uint64 {
		g := bm.LockOptimistic(pid)
		defer g.Release()
		return g.Ptr().ReadUnalignedU64(0)
	}
	if useBackoff {
		olc.RepeatWithBackoff(olc.DefaultBackoff(), do)
		return
	}
	olc.Repeat(do)
}
