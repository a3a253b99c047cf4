package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flashdb/arrowlog/internal/config"
	"github.com/flashdb/arrowlog/internal/notify"
	"github.com/flashdb/arrowlog/internal/record"
	"github.com/flashdb/arrowlog/internal/recordbuf"
	"github.com/flashdb/arrowlog/internal/storage"
)

func newProduceCmd(cfg *config.Config) *cobra.Command {
	var (
		path      string
		startSeq  uint64
		batchSize int
		flush     bool
		create    bool
	)

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Append one record per line of stdin into a storage file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduce(path, startSeq, batchSize, flush, create, cfg.BufferCapacity)
		},
	}

	cmd.Flags().StringVar(&path, "data", cfg.DataDir+"/arrowlog.storage", "path to the storage file")
	cmd.Flags().Uint64Var(&startSeq, "seq-start", 1, "sequence number assigned to the first line")
	cmd.Flags().IntVar(&batchSize, "batch", 100, "lines buffered per append transaction")
	cmd.Flags().BoolVar(&flush, "flush", cfg.FlushOnCommit, "data-sync the file on every commit")
	cmd.Flags().BoolVar(&create, "create", false, "create the storage file instead of opening an existing one")

	return cmd
}

func runProduce(path string, startSeq uint64, batchSize int, flush, create bool, bufCapacity int) error {
	s, err := openOrCreateStorage(path, create)
	if err != nil {
		return err
	}
	defer s.Close()

	notifier := notify.New()
	seq := startSeq
	buf := recordbuf.WithCapacity(bufCapacity)

	commit := func() error {
		if buf.IsEmpty() {
			return nil
		}
		txn, ok := s.AppendTxn()
		if !ok {
			return fmt.Errorf("produce: storage is already held by another writer")
		}
		defer txn.Close()

		if err := txn.Append(buf.Bytes()); err != nil {
			return err
		}
		newLen, err := txn.Commit(flush)
		if err != nil {
			return err
		}

		notifier.Publish(newLen)
		log.Debug("committed batch", "records", buf.Count(), "new_len", newLen)
		buf.Clear()
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !buf.Append(record.NewBorrowed(seq, line)) {
			return fmt.Errorf("produce: sequence %d did not advance buffer state", seq)
		}
		seq++

		if buf.Count() >= batchSize {
			if err := commit(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("produce: reading stdin: %w", err)
	}

	if err := commit(); err != nil {
		return err
	}

	log.Info("produce complete", "records", seq-startSeq, "len", s.Len())
	return nil
}

func openOrCreateStorage(path string, create bool) (*storage.Storage, error) {
	if create {
		return storage.Create(path)
	}
	return storage.Open(path)
}
