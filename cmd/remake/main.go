// Command remake is a thin developer-CLI reference harness over the
// engine facade (spec §4.11) — list modules, load/run a single operation,
// run a group, or run a module's install sequence. It is not the
// front-end the specification treats as an external collaborator (spec
// §1's "developer CLI parser" is out of scope); this is a minimal
// consumer used to exercise the facade end to end, in the shape of the
// teacher's cmd/nerd entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yggdrasil-au/remake-engine/internal/command"
	"github.com/yggdrasil-au/remake-engine/internal/dispatch"
	"github.com/yggdrasil-au/remake-engine/internal/engine"
	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/registry"
)

// Exit codes per spec §6.
const (
	exitSuccess          = 0
	exitOperationFailure = 1
	exitInvalidInvocation = 2
)

var (
	verbose     bool
	workspace   string
	answerFlags []string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "remake",
	Short: "Developer CLI harness over the remake-engine operation core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (default: current directory)")

	listCmd.Flags().Bool("installed", false, "restrict to installed modules")

	runCmd.Flags().StringArrayVar(&answerFlags, "answer", nil, "prompt answer, name=value (repeatable)")
	runGroupCmd.Flags().StringArrayVar(&answerFlags, "answer", nil, "prompt answer, name=value (repeatable)")

	rootCmd.AddCommand(listCmd, runCmd, runGroupCmd, installCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidInvocation)
	}
}

func projectRoot() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

func newEngine() (*engine.Engine, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	return engine.New(root, engine.Options{PathPrompt: interactivePathPrompt})
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list modules and their discovered state",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		installedOnly, _ := cmd.Flags().GetBool("installed")

		if installedOnly {
			mods, err := eng.ListInstalled()
			if err != nil {
				return err
			}
			printModules(mods)
			return nil
		}
		mods, err := eng.ListModules()
		if err != nil {
			return err
		}
		printModules(mods)
		return nil
	},
}

func printModules(mods map[string]registry.Descriptor) {
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := mods[name]
		title := d.Title
		if title == "" {
			title = d.Name
		}
		fmt.Printf("%-24s %-14s %s\n", d.Name, d.State, title)
	}
}

var runCmd = &cobra.Command{
	Use:   "run <module> <ops-file> <operation>",
	Short: "run a single named operation",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleName, opsFile, opName := args[0], args[1], args[2]

		eng, err := newEngine()
		if err != nil {
			return err
		}
		modules, err := eng.ListModules()
		if err != nil {
			return err
		}

		ops, err := eng.LoadOpsFlat(opsFile)
		if err != nil {
			return err
		}
		op, ok := findOperation(ops, opName)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown operation %q\n", opName)
			os.Exit(exitInvalidInvocation)
		}

		answers, err := parseAnswers(answerFlags)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInvocation)
		}

		ctx, cancelFn := signalContext()
		defer cancelFn()
		cancel := make(chan struct{})
		go func() { <-ctx.Done(); close(cancel) }()

		ok = eng.RunSingle(ctx, moduleName, modules, op, answers, cliCallbacks(), cancel)
		if !ok {
			os.Exit(exitOperationFailure)
		}
		return nil
	},
}

var runGroupCmd = &cobra.Command{
	Use:   "run-group <module> <ops-file> <group>",
	Short: "run a named group of operations",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleName, opsFile, groupName := args[0], args[1], args[2]

		eng, err := newEngine()
		if err != nil {
			return err
		}
		modules, err := eng.ListModules()
		if err != nil {
			return err
		}

		grouped, _, err := eng.LoadOps(opsFile)
		if err != nil {
			return err
		}
		ops, ok := grouped[groupName]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown group %q\n", groupName)
			os.Exit(exitInvalidInvocation)
		}

		answers, err := parseAnswers(answerFlags)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInvocation)
		}

		ctx, cancelFn := signalContext()
		defer cancelFn()
		cancel := make(chan struct{})
		go func() { <-ctx.Done(); close(cancel) }()

		ok = eng.RunGroup(ctx, moduleName, modules, groupName, ops, answers, cliCallbacks(), cancel)
		if !ok {
			os.Exit(exitOperationFailure)
		}
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install <module> <ops-file>",
	Short: "run a module's install sequence (run-all group, or its first group, defaults-only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleName, opsFile := args[0], args[1]

		eng, err := newEngine()
		if err != nil {
			return err
		}

		ctx, cancelFn := signalContext()
		defer cancelFn()
		cancel := make(chan struct{})
		go func() { <-ctx.Done(); close(cancel) }()

		ok, err := eng.RunInstall(ctx, moduleName, opsFile, cliCallbacks(), cancel)
		if err != nil {
			return err
		}
		if !ok {
			os.Exit(exitOperationFailure)
		}
		return nil
	},
}

func findOperation(ops []manifest.Operation, name string) (manifest.Operation, bool) {
	for _, op := range ops {
		if op.Name == name {
			return op, true
		}
	}
	return manifest.Operation{}, false
}

// parseAnswers turns repeated --answer name=value flags into a
// command.Answers map. A value containing commas is treated as a
// checkbox sequence; "true"/"false" coerce to bool for confirm prompts;
// everything else stays a string.
func parseAnswers(flags []string) (command.Answers, error) {
	answers := command.Answers{}
	for _, raw := range flags {
		name, value, found := strings.Cut(raw, "=")
		if !found {
			return nil, fmt.Errorf("invalid --answer %q, expected name=value", raw)
		}
		switch {
		case value == "true":
			answers[name] = true
		case value == "false":
			answers[name] = false
		case strings.Contains(value, ","):
			answers[name] = strings.Split(value, ",")
		default:
			answers[name] = value
		}
	}
	return answers, nil
}

func cliCallbacks() dispatch.Callbacks {
	return dispatch.Callbacks{
		OnOutput: func(line, stream string) {
			if stream == "stderr" {
				fmt.Fprintln(os.Stderr, line)
				return
			}
			fmt.Println(line)
		},
		OnEvent: func(ev event.Event) {
			printEvent(ev)
		},
		StdinProvider: func(ev event.Event) (string, error) {
			if msg := ev.String("message"); msg != "" {
				fmt.Print(msg + " ")
			}
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimRight(line, "\r\n"), nil
		},
	}
}

func printEvent(ev event.Event) {
	switch ev.Type {
	case event.TypePrint:
		fmt.Println(ev.String("message"))
	case event.TypeWarning:
		fmt.Fprintln(os.Stderr, "warning:", ev.String("message"))
	case event.TypeError:
		fmt.Fprintln(os.Stderr, "error:", ev.String("message"))
	case event.TypeProgress:
		cur, _ := ev.Get("current")
		total, _ := ev.Get("total")
		fmt.Printf("progress[%s]: %v/%v %s\n", ev.String("id"), cur, total, ev.String("label"))
	case event.TypeEnd:
		if !ev.Bool("success") {
			fmt.Fprintln(os.Stderr, "operation failed")
		}
	default:
		fmt.Printf("event %s: %v\n", ev.Type, ev.Fields)
	}
}

// interactivePathPrompt asks a yes/no question on the CLI's own stdin,
// used to grant session-wide access to an out-of-workspace path root
// (spec §4.7).
func interactivePathPrompt(question string) (bool, error) {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
