package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flashdb/arrowlog/internal/config"
	"github.com/flashdb/arrowlog/internal/record"
	"github.com/flashdb/arrowlog/internal/storage"
)

func newConsumeCmd(cfg *config.Config) *cobra.Command {
	var (
		path    string
		offset  uint64
		follow  bool
		pollDur time.Duration
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Decode and print records from a storage file starting at an offset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(path, offset, follow, pollDur)
		},
	}

	cmd.Flags().StringVar(&path, "data", cfg.DataDir+"/arrowlog.storage", "path to the storage file")
	cmd.Flags().Uint64Var(&offset, "offset", 0, "byte offset to begin reading from")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep polling for new records instead of exiting at the end")
	cmd.Flags().DurationVar(&pollDur, "poll-interval", 200*time.Millisecond, "sleep between polls in --follow mode")

	return cmd
}

func runConsume(path string, offset uint64, follow bool, pollInterval time.Duration) error {
	s, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		txn, ok := s.ReadTxn(offset)
		if !ok {
			if !follow {
				return nil
			}
			time.Sleep(pollInterval)
			continue
		}

		buf := make([]byte, txn.Remaining())
		if err := txn.ReadExact(buf); err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		offset = txn.Commit()

		rest := buf
		for {
			rec, tail, ok := record.Decode(rest)
			if !ok {
				break
			}
			fmt.Printf("seq=%d size=%d payload=%q\n", rec.SeqNo, len(rec.Payload), rec.Payload)
			rest = tail
		}
		if len(rest) > 0 {
			log.Warn("trailing partial record at end of snapshot", "bytes", len(rest))
		}
	}
}
