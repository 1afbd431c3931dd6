// cmd/changeview/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"changeview/internal/builder"
	"changeview/internal/config"
	"changeview/internal/logging"
	"changeview/internal/scan"
	"changeview/internal/snapshot"
	"changeview/internal/tree"
	"changeview/internal/watch"
	"changeview/shared/types"
	"changeview/shared/utils"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger  *zap.Logger
	cfg     *config.Config
	flatten bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "changeview",
	Short: "Changeview renders a grouped tree of working-tree changes",
	Long: `Changeview scans a working tree, classifies files as modified,
unversioned, ignored, or locally deleted, and renders them as the grouped,
collapsed tree an IDE changes panel would show.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(".changeview.json")
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		level := cfg.LogLevel
		if debug {
			level = "debug"
		}
		logger, err = logging.New(level, debug)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		if !flatten {
			flatten = cfg.Flatten
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flatten, "flatten", false, "disable hierarchical grouping")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Scan the working tree and print the changes tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			db, store, err := openStore(root)
			if err != nil {
				return err
			}
			defer db.Close()
			defer store.Close()

			t, err := buildTree(store, root)
			if err != nil {
				return err
			}
			printTree(t)
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and reprint the changes tree on working-tree events",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			db, store, err := openStore(root)
			if err != nil {
				return err
			}
			defer db.Close()
			defer store.Close()

			rebuild := func() {
				t, err := buildTree(store, root)
				if err != nil {
					logger.Error("rebuilding changes tree", zap.Error(err))
					return
				}
				fmt.Println()
				printTree(t)
			}
			rebuild()

			watcher, err := watch.New(root, 500*time.Millisecond, rebuild, logger)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer watcher.Close()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			return nil
		},
	}

	var trackCmd = &cobra.Command{
		Use:   "track [paths...]",
		Short: "Record the current content of paths as the tracked baseline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			db, store, err := openStore(root)
			if err != nil {
				return err
			}
			defer db.Close()
			defer store.Close()

			tracked, err := store.Tracked()
			if err != nil {
				return err
			}
			for _, arg := range args {
				if err := trackPath(root, arg, tracked); err != nil {
					return err
				}
			}
			if err := store.SaveTracked(tracked); err != nil {
				return fmt.Errorf("saving tracked index: %w", err)
			}

			fmt.Printf("Tracking %d files\n", len(tracked))
			return nil
		},
	}

	rootCmd.AddCommand(statusCmd, watchCmd, trackCmd)
}

func openStore(root string) (*badger.DB, *snapshot.Store, error) {
	dir := filepath.Join(root, cfg.StoreDir)
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	store, err := snapshot.New(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}

// buildTree scans the working tree and assembles the full changes model.
func buildTree(store *snapshot.Store, root string) (*tree.Tree, error) {
	tracked, err := store.Tracked()
	if err != nil {
		return nil, err
	}

	result, err := scan.New(root, tracked, logger).Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning working tree: %w", err)
	}
	if err := store.SaveStatus(result.Changes); err != nil {
		return nil, fmt.Errorf("saving status snapshot: %w", err)
	}

	b := builder.New(builder.Options{
		Flatten:   flatten,
		Threshold: cfg.ManyFilesThreshold,
		Logger:    logger,
	})

	var lists []shared.ChangeList
	if len(result.Changes) > 0 {
		lists = []shared.ChangeList{{Name: "Default", Default: true, Changes: result.Changes}}
	}
	t, err := b.SetChangeLists(lists).
		SetUnversioned(result.Unversioned, countFiles(result.Unversioned)).
		SetIgnored(result.Ignored, countFiles(result.Ignored), false).
		SetLocallyDeleted(result.Deleted).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building changes tree: %w", err)
	}
	return t, nil
}

func countFiles(files []shared.VirtualFile) builder.Counts {
	var c builder.Counts
	for _, f := range files {
		if f.IsDir {
			c.Dirs++
		} else {
			c.Files++
		}
	}
	return c
}

func trackPath(root, arg string, tracked map[string]string) error {
	abs := filepath.Join(root, arg)
	if arg == "." {
		abs = root
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("accessing path %s: %w", arg, err)
	}

	record := func(path string) error {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", rel, err)
		}
		tracked[filepath.ToSlash(rel)] = utils.HashContent(content)
		return nil
	}

	if !info.IsDir() {
		return record(abs)
	}
	return filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if name == ".git" || name == cfg.StoreDir || name == "node_modules" || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		return record(path)
	})
}

func printTree(t *tree.Tree) {
	var walk func(id tree.NodeID, depth int)
	walk = func(id tree.NodeID, depth int) {
		for _, child := range t.Children(id) {
			fmt.Printf("%s%s\n", strings.Repeat("  ", depth), renderNode(t, child))
			walk(child, depth+1)
		}
	}
	walk(t.Root(), 0)
}

func renderNode(t *tree.Tree, id tree.NodeID) string {
	n := t.Node(id)
	text := t.Text(id)

	switch n.Kind {
	case tree.KindChangelist:
		return color.New(color.FgCyan, color.Bold).Sprint(text)
	case tree.KindTag:
		s := color.New(color.FgYellow, color.Bold).Sprint(text)
		if n.FileCount > 0 || n.DirCount > 0 {
			s += fmt.Sprintf(" (%d files, %d dirs)", n.FileCount, n.DirCount)
		}
		if n.ManyFiles {
			s += color.YellowString(" - too many to show")
		}
		if n.Updating {
			s += " (updating...)"
		}
		return s
	case tree.KindBranch:
		return color.New(color.FgMagenta).Sprint(text)
	case tree.KindPath:
		if !t.IsLeaf(id) {
			return color.BlueString(text) + "/"
		}
		return text
	case tree.KindChange:
		c := n.Value.(shared.Change)
		switch c.Status {
		case shared.StatusAdded:
			return color.GreenString(text)
		case shared.StatusDeleted:
			return color.RedString(text)
		default:
			return color.HiBlueString(text)
		}
	case tree.KindLocallyDeleted:
		return color.RedString(text)
	case tree.KindFile:
		return color.HiBlackString(text)
	default:
		return text
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
