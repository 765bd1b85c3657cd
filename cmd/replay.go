package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	service "github.com/nbunney/rrcompanion/internal/app"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/position"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

// replayFile is a recorded set of catalog items and leaderboard snapshots.
type replayFile struct {
	Items   []model.Item  `yaml:"items"`
	Batches []model.Batch `yaml:"batches"`
}

func newReplayCmd() *cobra.Command {
	var (
		file  string
		items []string
	)
	cmd := &cobra.Command{
		Use:   "replay --file snapshots.yaml --item ID [--item ID...]",
		Short: "Replay recorded snapshots in memory and print item positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the results
			if err := logger.InitWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var rf replayFile
			if err := yaml.Unmarshal(raw, &rf); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return replay(cmd.Context(), &rf, items, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with items and batches")
	cmd.Flags().StringSliceVarP(&items, "item", "i", nil, "item ids to look up")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

// replayOutput is one printed line per requested item.
type replayOutput struct {
	ItemID string           `json:"item_id"`
	Result *position.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func replay(ctx context.Context, rf *replayFile, ids []string, out io.Writer) error {
	svc := service.New(
		service.WithLogger(logger.Named("replay")),
		service.WithInMemory(true),
		service.WithWorkerCount(1),
		service.WithRebuildInterval(0),
		service.WithRetention(0),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	for _, item := range rf.Items {
		if err := svc.PutItem(ctx, item); err != nil {
			return fmt.Errorf("item %s: %w", item.ID, err)
		}
	}
	for _, b := range rf.Batches {
		if err := svc.ApplyNow(ctx, b); err != nil {
			return fmt.Errorf("batch %s: %w", b.Key(), err)
		}
	}
	if _, err := svc.RebuildNow(ctx); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	enc := json.NewEncoder(out)
	for _, id := range ids {
		line := replayOutput{ItemID: id}
		res, err := svc.Lookup(ctx, id)
		if err != nil {
			line.Error = err.Error()
		} else {
			line.Result = &res
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
