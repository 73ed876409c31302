package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dan-solli/revisit/internal/config"
	"github.com/dan-solli/revisit/pkg/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		fromLog   string
		fromQueue string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy attempt log and review queue files into the configured store",
		Example: `  revisit migrate --from-log attempt_log.json --from-queue review_queue.json
  revisit --config revisit.yaml migrate --from-log old/log.json --from-queue old/queue.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.Backend == config.BackendMemory {
				return errors.New("migrating into the memory backend would discard the result")
			}
			if a.cfg.Storage.Backend == config.BackendPair &&
				samePath(fromLog, a.cfg.Storage.LogPath) && samePath(fromQueue, a.cfg.Storage.QueuePath) {
				return errors.New("source and target are the same files")
			}

			if !exists(fromLog) && !exists(fromQueue) {
				return fmt.Errorf("no legacy state found at %s or %s", fromLog, fromQueue)
			}

			to, err := a.openStore()
			if err != nil {
				return err
			}
			defer to.Close()
			from := store.NewPairFileStore(fromLog, fromQueue)
			defer from.Close()

			snap, err := store.Migrate(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			questions, attempts, queued := snap.Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d questions, %d attempts, %d queued reviews into %s storage.\n",
				questions, attempts, queued, a.cfg.Storage.Backend)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromLog, "from-log", config.DefaultLogPath, "legacy attempt log file")
	cmd.Flags().StringVar(&fromQueue, "from-queue", config.DefaultQueuePath, "legacy review queue file")
	return cmd
}

// exists reports whether path names something that can be stat'ed.
// Permission errors count as existing so the load reports them.
func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
