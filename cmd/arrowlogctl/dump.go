package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashdb/arrowlog/internal/config"
	"github.com/flashdb/arrowlog/internal/record"
	"github.com/flashdb/arrowlog/internal/storage"
)

func newDumpCmd(cfg *config.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a summary of every committed record in a storage file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(path)
		},
	}

	cmd.Flags().StringVar(&path, "data", cfg.DataDir+"/arrowlog.storage", "path to the storage file")

	return cmd
}

func runDump(path string) error {
	s, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("path=%s committed_len=%d\n", s.Path(), s.Len())

	txn, ok := s.ReadTxn(0)
	if !ok {
		fmt.Println("(empty)")
		return nil
	}

	buf := make([]byte, txn.Remaining())
	if err := txn.ReadExact(buf); err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	var count int
	var first, last uint64
	rest := buf
	for {
		rec, tail, ok := record.Decode(rest)
		if !ok {
			break
		}
		if count == 0 {
			first = rec.SeqNo
		}
		last = rec.SeqNo
		count++
		rest = tail
	}

	fmt.Printf("records=%d first_seq=%d last_seq=%d trailing_bytes=%d\n", count, first, last, len(rest))
	return nil
}
