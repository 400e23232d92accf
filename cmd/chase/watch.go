package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbchase/chasecore/internal/chase/builder"
	"github.com/dbchase/chasecore/internal/config"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch [scenario] [facts-file]",
	Short: "Watch a facts file and re-chase the scenario on every change",
	Long: `Seeds the ancestor scenario from a facts file (one "parent,child" line
per edge) and re-runs the chase to a fixpoint every time that file changes,
printing the newly-saturated fact count. Only the ancestor scenario takes
external facts today; other scenarios ignore the file and simply re-run
their built-in seed on every event.`,
	Args: cobra.ExactArgs(2),
	RunE: watchScenario,
}

func watchScenario(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	s, err := mustScenario(name)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	runOnce := func() {
		if err := runWatchedChase(s, cfg, path); err != nil {
			logger.Error("chase run failed", zap.Error(err))
		}
	}
	runOnce()

	debounce := 200 * time.Millisecond
	var pending *time.Timer
	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, runOnce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", zap.Error(err))
		}
	}
}

func runWatchedChase(s scenario, cfg *config.Config, path string) error {
	sess := term.NewSession()
	rb, seed := s.Build(sess)

	target := store.WritableMaterializedData(store.NewInMemoryFactBase())
	facts := seed
	if s.Name == "ancestor" {
		extra, err := readParentEdges(sess, path)
		if err != nil {
			return err
		}
		facts = extra
	}
	if err := seedStore(target, facts); err != nil {
		return err
	}

	b, err := builder.FromConfig(sess, &cfg.Chase)
	if err != nil {
		return err
	}
	engine, err := b.WithChasable(store.NewChasableData(target)).WithRuleBase(rb).Build()
	if err != nil {
		return err
	}
	result, err := engine.Run()
	if err != nil {
		return err
	}

	n := 0
	it := target.Iterate()
	for {
		_, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		n++
	}
	fmt.Printf("[%s] re-chased in %d steps, %d atoms total\n", time.Now().Format(time.Kitchen), result.Steps, n)
	return nil
}

// readParentEdges parses "parent,child" lines from path into parent/2
// atoms, skipping blank lines and "#" comments. This is CLI sugar for the
// watch demo, not a general rule/fact text format.
func readParentEdges(sess *term.Session, path string) ([]term.Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	parent := sess.Predicate("parent", 2)
	var atoms []term.Atom
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}
		a := term.MustAtom(parent, sess.Constant(strings.TrimSpace(parts[0])), sess.Constant(strings.TrimSpace(parts[1])))
		atoms = append(atoms, a)
	}
	return atoms, scanner.Err()
}
