package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"webresearch/internal/browser"
	"webresearch/internal/config"
	"webresearch/internal/knowledge"
	"webresearch/internal/llm"
	"webresearch/internal/logging"
	"webresearch/internal/navigation"
	"webresearch/internal/orchestration"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "researcher",
	Short: "Autonomous web research assistant",
	Long: `researcher plans, executes, and reports on web research queries.

A query is decomposed into search terms per knowledge source, executed
against web search, Wikipedia, and arXiv under polite rate limiting and
robots.txt rules, then synthesized into a cited Markdown report.

Run without arguments to start the interactive prompt.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Enabled, level); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// researchCmd runs one query end to end
var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Run a single research query and save the report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResearch,
}

// sourcesCmd lists the enabled knowledge sources
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the enabled knowledge sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range cfg.Knowledge.EnabledSources {
			fmt.Println(name)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("researcher %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// assistant bundles the wired pipeline with the session it must close.
type assistant struct {
	pipeline *orchestration.Pipeline
	session  *browser.Session
	registry *knowledge.Registry
}

func (a *assistant) Close() {
	if err := a.session.Close(); err != nil {
		logger.Warn("browser session close", zap.Error(err))
	}
	if err := a.registry.Close(); err != nil {
		logger.Warn("registry close", zap.Error(err))
	}
}

// newAssistant wires the full stack from the loaded config.
func newAssistant() (*assistant, error) {
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	gatekeeper := navigation.NewGatekeeper(cfg)
	session := browser.NewSession(cfg.Browser, gatekeeper)

	registry, err := knowledge.NewRegistry(cfg.Knowledge, knowledge.DefaultBuilder(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build source registry: %w", err)
	}

	return &assistant{
		pipeline: orchestration.NewPipeline(client, session, registry, cfg),
		session:  session,
		registry: registry,
	}, nil
}

// runResearch executes one query and prints the saved report path.
func runResearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	a, err := newAssistant()
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	return runQuery(ctx, a, query)
}

func runQuery(ctx context.Context, a *assistant, query string) error {
	logger.Info("starting research", zap.String("query", query))
	fmt.Printf("Researching: %s\n", query)

	report, results, path, err := a.pipeline.Run(ctx, query)
	if err != nil {
		// The report still exists; surface it before the save error.
		fmt.Println(report)
		return err
	}

	fmt.Printf("Completed %d/%d steps\n\n", results.CompletedSteps, results.TotalSteps)
	fmt.Println(report)
	fmt.Printf("\nReport saved to %s\n", path)
	return nil
}

// runInteractive loops on stdin until quit.
func runInteractive() error {
	a, err := newAssistant()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(strings.Repeat("─", 60))
	fmt.Println("Research assistant - enter a query, or 'quit' to exit")
	fmt.Println(strings.Repeat("─", 60))

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)

		switch input {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Println("Bye.")
			return nil
		case "sources":
			for _, name := range cfg.Knowledge.EnabledSources {
				fmt.Println(name)
			}
			continue
		}

		if err := runQuery(context.Background(), a, input); err != nil {
			fmt.Printf("research failed: %v\n", err)
		}
	}
	return nil
}
