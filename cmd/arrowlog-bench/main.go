// arrowlog-bench drives N reader goroutines and one writer goroutine
// against a single storage file and reports throughput, rebuilding the
// shape of original_source/benchmarks/storage.rs (readers, append
// size, and tick-paced append/flush/read intervals) as a Cobra command
// with structured logging instead of bare stdout prints.
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flashdb/arrowlog/internal/storage"
)

func main() {
	if err := newBenchCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newBenchCmd() *cobra.Command {
	var (
		readers      int
		appendSize   int
		appendTick   time.Duration
		appendFlush  time.Duration
		readTick     time.Duration
		totalAppends int
	)

	cmd := &cobra.Command{
		Use:   "arrowlog-bench",
		Short: "Benchmark concurrent append/read throughput against a storage file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(benchArgs{
				readers:      readers,
				appendSize:   appendSize,
				appendTick:   appendTick,
				appendFlush:  appendFlush,
				readTick:     readTick,
				totalAppends: totalAppends,
			})
		},
	}

	cmd.Flags().IntVar(&readers, "readers", 8, "number of concurrently reading goroutines")
	cmd.Flags().IntVar(&appendSize, "append-size", 1<<20, "bytes appended per transaction")
	cmd.Flags().DurationVar(&appendTick, "append-tick", 100*time.Millisecond, "sleep between appends")
	cmd.Flags().DurationVar(&appendFlush, "append-flush", 10*time.Second, "interval between flushes")
	cmd.Flags().DurationVar(&readTick, "read-tick", 100*time.Millisecond, "sleep between read retries")
	cmd.Flags().IntVar(&totalAppends, "total-appends", 300, "total number of append transactions")

	return cmd
}

type benchArgs struct {
	readers      int
	appendSize   int
	appendTick   time.Duration
	appendFlush  time.Duration
	readTick     time.Duration
	totalAppends int
}

func runBench(args benchArgs) error {
	dir, err := os.MkdirTemp("", "arrowlog-bench-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := dir + "/bench.storage"
	s, err := storage.Create(path)
	if err != nil {
		return err
	}
	defer s.Destroy()

	log.Info("storage created", "path", path)

	var writeSeconds, readSeconds atomic.Int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		data := make([]byte, args.appendSize)
		ticker := time.NewTicker(args.appendTick)
		defer ticker.Stop()

		lastFlush := time.Now()
		for i := 0; i < args.totalAppends; i++ {
			<-ticker.C

			txn, ok := s.AppendTxn()
			if !ok {
				log.Error("writer: storage unexpectedly held by another writer")
				return
			}
			if err := txn.Append(data); err != nil {
				log.Error("writer: append failed", "error", err)
				txn.Close()
				return
			}
			if _, err := txn.Commit(false); err != nil {
				log.Error("writer: commit failed", "error", err)
				txn.Close()
				return
			}
			txn.Close()

			if time.Since(lastFlush) > args.appendFlush {
				if err := s.Flush(); err != nil {
					log.Error("writer: flush failed", "error", err)
					return
				}
				lastFlush = time.Now()
			}
		}

		writeSeconds.Add(int64(time.Since(start).Seconds()))
	}()

	for r := 0; r < args.readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			ticker := time.NewTicker(args.readTick)
			defer ticker.Stop()

			buf := make([]byte, args.appendSize)
			batches := 0
			for batches < args.totalAppends {
				offset := uint64(batches * args.appendSize)
				txn, ok := s.ReadTxn(offset)
				if !ok {
					<-ticker.C
					continue
				}
				if err := txn.ReadExact(buf); err != nil {
					<-ticker.C
					continue
				}
				batches++
			}

			readSeconds.Add(int64(time.Since(start).Seconds()))
		}()
	}

	wg.Wait()

	writeMBps := rate(writeSeconds.Load(), 1, args)
	fmt.Printf("Writer:  %d MB/s\n", writeMBps)

	readMBps := rate(readSeconds.Load(), args.readers, args)
	fmt.Printf("Readers: %d | avg/reader %d MB/s\n", args.readers, readMBps)

	return nil
}

func rate(seconds int64, workers int, args benchArgs) int64 {
	totalBytes := int64(args.totalAppends) * int64(args.appendSize) * int64(workers)
	if seconds == 0 {
		return totalBytes / (1024 * 1024)
	}
	return totalBytes / seconds / (1024 * 1024)
}
