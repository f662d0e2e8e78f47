package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/starkware-libs/committer/committer/forest"
	"github.com/starkware-libs/committer/committer/storage"
	"github.com/starkware-libs/committer/committer/trie"
)

var (
	dbDirectory string
	inputPath   string
	cacheSize   int
)

var rootCmd = &cobra.Command{
	Use:           "committer",
	Short:         "Patricia trie forest commitment engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit one state diff on top of the latest committed block",
	RunE:  runCommit,
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Print the latest committed block number and state roots",
	RunE:  runRoots,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDirectory, "db", "committer-db", "directory of the LevelDB instance")
	commitCmd.Flags().StringVar(&inputPath, "input", "", "JSON file holding the state diff to commit")
	commitCmd.Flags().IntVar(&cacheSize, "cache", 1<<16, "node read-cache capacity in entries")
	_ = commitCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(commitCmd, rootsCmd)
}

func runCommit(cmd *cobra.Command, _ []string) error {
	diff, err := readStateDiff(inputPath)
	if err != nil {
		return err
	}

	db, err := storage.OpenLevelDbStorage(dbDirectory)
	if err != nil {
		return err
	}
	defer db.Close()
	store := storage.NewCachedStorage(db, cacheSize)

	ctx := cmd.Context()
	metadata := storage.NewForestMetadata(store)
	blockNumber, err := metadata.GetCommitmentOffset(ctx)
	if err != nil {
		return err
	}

	previousRoots := forest.StateRoots{}
	if blockNumber > 0 {
		contractsRoot, classesRoot, err := metadata.GetStateRoots(ctx, blockNumber-1)
		if err != nil {
			return err
		}
		previousRoots = forest.StateRoots{ContractsTrieRoot: contractsRoot, ClassesTrieRoot: classesRoot}
	}

	roots, err := forest.CommitBatch(ctx, store, trie.KeccakHashFunction{}, previousRoots, diff, blockNumber)
	if err != nil {
		return fmt.Errorf("failed to commit block %d: %w", blockNumber, err)
	}
	fmt.Printf("block:          %d\n", blockNumber)
	fmt.Printf("contracts root: %s\n", roots.ContractsTrieRoot)
	fmt.Printf("classes root:   %s\n", roots.ClassesTrieRoot)
	return nil
}

func runRoots(cmd *cobra.Command, _ []string) error {
	store, err := storage.OpenLevelDbStorage(dbDirectory)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	metadata := storage.NewForestMetadata(store)
	offset, err := metadata.GetCommitmentOffset(ctx)
	if err != nil {
		return err
	}
	if offset == 0 {
		fmt.Println("no block committed yet")
		return nil
	}
	contractsRoot, classesRoot, err := metadata.GetStateRoots(ctx, offset-1)
	if err != nil {
		return err
	}
	fmt.Printf("latest block:   %d\n", offset-1)
	fmt.Printf("contracts root: %s\n", contractsRoot)
	fmt.Printf("classes root:   %s\n", classesRoot)
	return nil
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, false)))
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}
