// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// Using the defaults from goreleaser as per https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func BuildRootCommand(opt *Options) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "crewtune",
		Short: "Run LLM agent crews and optimize their prompts",
		Long: "crewtune runs small crews of role-playing LLM agents and can rewrite every prompt they send " +
			"through a prompt-improver program compiled with bootstrap few-shot optimization.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opt.EnvFile)
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of crewtune",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		},
	})
	rootCmd.AddCommand(
		buildCrewCommand(opt),
		buildBootstrapCommand(opt),
		buildOptimizeCommand(opt),
		buildRunsCommand(),
		buildCacheCommand(opt),
		buildModelsCommand(opt),
		buildTraceCommand(opt),
	)

	if err := opt.bindCLIFlags(rootCmd.PersistentFlags()); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

type Options struct {
	ProviderID string `json:"llmProvider,omitempty"`
	// ModelID, when set, replaces the model of every crew agent.
	ModelID string `json:"model,omitempty"`
	// ImproverModel is the "provider/model" that runs the prompt-improver program.
	ImproverModel string `json:"improverModel,omitempty"`
	// JudgeModel is the "provider/model" that answers the metric's questions.
	JudgeModel string `json:"judgeModel,omitempty"`
	MaxTokens  int    `json:"maxTokens,omitempty"`

	TracePath string `json:"tracePath,omitempty"`
	// CachePath is the SQLite file that caches completions.
	CachePath string `json:"cachePath,omitempty"`
	NoCache   bool   `json:"noCache,omitempty"`
	EnvFile   string `json:"envFile,omitempty"`

	// OutputDir is where task output files are written.
	OutputDir string `json:"outputDir,omitempty"`
	// RecordRun stores every crew run under ~/.crewtune/runs.
	RecordRun bool `json:"recordRun,omitempty"`

	// SkipVerifySSL is a flag to skip verifying the SSL certificate of the LLM provider.
	SkipVerifySSL bool `json:"skipVerifySSL,omitempty"`
}

var defaultConfigPaths = []string{
	filepath.Join("{CONFIG}", "crewtune", "config.yaml"),
	filepath.Join("{HOME}", ".config", "crewtune", "config.yaml"),
}

func (o *Options) InitDefaults() {
	o.ProviderID = "anthropic"
	o.ModelID = ""
	o.ImproverModel = "anthropic/claude-sonnet-4-20250514"
	o.JudgeModel = "anthropic/claude-sonnet-4-20250514"
	o.MaxTokens = 4096
	o.TracePath = filepath.Join(os.TempDir(), "crewtune-trace.yaml")
	o.CachePath = filepath.Join("{CACHE}", "crewtune", "llm-cache.db")
	o.NoCache = false
	o.EnvFile = ".env"
	o.OutputDir = "."
	o.RecordRun = false
	// Default to not skipping SSL verification
	o.SkipVerifySSL = false
}

func (o *Options) LoadConfiguration(b []byte) error {
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}
	return nil
}

func (o *Options) LoadConfigurationFile() error {
	for _, configPath := range defaultConfigPaths {
		expanded, err := expandPathPlaceholders(configPath)
		if err != nil {
			return err
		}

		configBytes, err := os.ReadFile(expanded)
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "warning: could not load defaults from %q: %v\n", expanded, err)
			}
			continue
		}
		if len(configBytes) > 0 {
			if err := o.LoadConfiguration(configBytes); err != nil {
				fmt.Fprintf(os.Stderr, "warning: error loading configuration from %q: %v\n", expanded, err)
			}
		}
	}
	return nil
}

// expandPathPlaceholders replaces {CONFIG}, {CACHE} and {HOME} with the
// user's directories.
func expandPathPlaceholders(p string) (string, error) {
	placeholders := []struct {
		name string
		dir  func() (string, error)
	}{
		{"{CONFIG}", os.UserConfigDir},
		{"{CACHE}", os.UserCacheDir},
		{"{HOME}", os.UserHomeDir},
	}
	for _, ph := range placeholders {
		if !strings.Contains(p, ph.name) {
			continue
		}
		dir, err := ph.dir()
		if err != nil {
			return "", fmt.Errorf("resolving %s in path %q: %w", ph.name, p, err)
		}
		p = strings.ReplaceAll(p, ph.name, dir)
	}
	return filepath.Clean(p), nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// restore default behavior for a second signal
		signal.Stop(make(chan os.Signal))
		cancel()
		klog.Flush()
	}()

	if err := run(ctx); err != nil {
		// Don't print error if it's a context cancellation
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// klog setup must happen before Cobra parses any flags

	// add commandline flags for logging
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.Set("logtostderr", "false")
	klogFlags.Set("log_file", filepath.Join(os.TempDir(), "crewtune.log"))

	defer klog.Flush()

	var opt Options

	opt.InitDefaults()

	// load YAML config values
	if err := opt.LoadConfigurationFile(); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		return err
	}

	// We add just the klog flags we want, not all the klog flags (there are a lot, most of them are very niche)
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("alsologtostderr"))

	// do this early, before the third-party code logs anything.
	redirectStdLogToKlog()

	return rootCmd.ExecuteContext(ctx)
}

func (opt *Options) bindCLIFlags(f *pflag.FlagSet) error {
	f.StringVar(&opt.ProviderID, "llm-provider", opt.ProviderID, "default language model provider for model references without a provider prefix")
	f.StringVar(&opt.ModelID, "model", opt.ModelID, "model for every crew agent, e.g. anthropic/claude-sonnet-4-20250514 (default: as defined by the crew)")
	f.StringVar(&opt.ImproverModel, "improver-model", opt.ImproverModel, "model that rewrites prompts")
	f.StringVar(&opt.JudgeModel, "judge-model", opt.JudgeModel, "model that judges rewritten prompts during optimization")
	f.IntVar(&opt.MaxTokens, "max-tokens", opt.MaxTokens, "maximum tokens per completion")

	f.StringVar(&opt.TracePath, "trace-path", opt.TracePath, "path to the trace file")
	f.StringVar(&opt.CachePath, "cache-path", opt.CachePath, "path to the completion cache database")
	f.BoolVar(&opt.NoCache, "no-cache", opt.NoCache, "do not cache completions")
	f.StringVar(&opt.EnvFile, "env-file", opt.EnvFile, "dotenv file with provider credentials")
	f.StringVar(&opt.OutputDir, "output-dir", opt.OutputDir, "directory task output files are written to")
	f.BoolVar(&opt.RecordRun, "record-run", opt.RecordRun, "record crew runs under ~/.crewtune/runs")
	f.BoolVar(&opt.SkipVerifySSL, "skip-verify-ssl", opt.SkipVerifySSL, "skip verifying the SSL certificate of the LLM provider")
	return nil
}

func redirectStdLogToKlog() {
	log.SetOutput(klogWriter{})

	// Disable standard log's prefixes (date, time, file info)
	// because klog will add its own more detailed prefix.
	log.SetFlags(0)
}

// Define a custom writer that forwards messages to klog.Warning
type klogWriter struct{}

// Implement the io.Writer interface
func (writer klogWriter) Write(data []byte) (n int, err error) {
	// We trim the trailing newline because klog adds its own.
	message := string(bytes.TrimSuffix(data, []byte("\n")))
	klog.Warning(message)
	return len(data), nil
}
