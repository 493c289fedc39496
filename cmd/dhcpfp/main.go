package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/InfraSecConsult/dhcp-osfp-go/internal/config"
	"github.com/InfraSecConsult/dhcp-osfp-go/internal/fingerprint"
	"github.com/InfraSecConsult/dhcp-osfp-go/internal/logging"
	"github.com/InfraSecConsult/dhcp-osfp-go/internal/parser"
	"github.com/InfraSecConsult/dhcp-osfp-go/internal/repository"
	"github.com/InfraSecConsult/dhcp-osfp-go/internal/version"
	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

// Metadata keys written next to stored classifications.
const (
	metaLastRun   = "last_run"
	metaVersion   = "tool_version"
	metaRunPrefix = "run:"
)

// DependencyProvider allows injection for testability
// (in production, use real implementations)
type DependencyProvider struct {
	Parser       parser.PacketParser
	Repository   repository.Repository
	Registry     *fingerprint.Registry
	ErrorHandler parser.ErrorHandler
}

// newRootCmd wires up the CLI with the given dependencies
func newRootCmd(provider *DependencyProvider) *cobra.Command {
	var (
		configPath string
		debug      bool
		cfg        config.Config
		logCloser  io.Closer
	)
	defaults := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:           "dhcpfp",
		Short:         "Passive DHCP OS fingerprinting with Satori signatures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(config.DefaultSources(configPath, cmd.Flags(), debug)...); err != nil {
				return err
			}
			cfg = manager.Get()

			closer, err := logging.ConfigureGlobalLogging(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
				Out:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", defaults.Log.Format, "Log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", defaults.Log.File, "Append logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("signatures", defaults.Signatures.Path, "Satori DHCP signature file (.xml or .yaml); built-in signatures when empty")
	rootCmd.PersistentFlags().String("db", defaults.Database.Path, "Path to the SQLite database file")

	var (
		store       bool
		matchedOnly bool
	)
	classifyCmd := &cobra.Command{
		Use:   "classify <pcap-file>",
		Short: "Identify DHCP client operating systems in a pcap or pcapng file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pcapFile := args[0]

			registry, err := resolveRegistry(provider, cfg)
			if err != nil {
				return err
			}

			if provider.Parser == nil {
				p := parser.NewGopacketParser(pcapFile)
				p.ClientOnly = cfg.Parser.ClientOnly
				handler := provider.ErrorHandler
				if handler == nil {
					handler = parser.NewDefaultErrorHandler(nil)
				}
				p.SetErrorHandler(handler)
				provider.Parser = p
			}

			startTime := time.Now()
			observations, err := provider.Parser.ParseFile()
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			classifications := classifyObservations(registry, runID, observations)
			log.Info().
				Str("run_id", runID).
				Str("file", pcapFile).
				Int("observations", len(observations)).
				Dur("duration", time.Since(startTime)).
				Msg("Classified DHCP observations")

			if store {
				if err := storeRun(provider, cfg, runID, signatureSource(registry), classifications); err != nil {
					return err
				}
			}

			if matchedOnly {
				classifications = onlyMatched(classifications)
			}
			return formatClassifications(cmd.OutOrStdout(), classifications, cfg.Output.Format)
		},
	}
	classifyCmd.Flags().String("output", defaults.Output.Format, "Output format: table, json, csv")
	classifyCmd.Flags().Bool("client-only", defaults.Parser.ClientOnly, "Only classify client (BOOTREQUEST) messages")
	classifyCmd.Flags().BoolVar(&store, "store", false, "Store the results in the SQLite database")
	classifyCmd.Flags().BoolVar(&matchedOnly, "matched-only", false, "Only print observations with a match")

	signaturesCmd := &cobra.Command{
		Use:   "signatures",
		Short: "Inspect Satori DHCP signature files",
	}

	listSignaturesCmd := &cobra.Command{
		Use:   "list",
		Short: "List the fingerprints of the configured signature file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := loadSignatures(cfg.Signatures.Path)
			if err != nil {
				return err
			}
			return formatFingerprints(cmd.OutOrStdout(), db, cfg.Output.Format)
		},
	}
	listSignaturesCmd.Flags().String("output", defaults.Output.Format, "Output format: table, json, csv")

	checkSignaturesCmd := &cobra.Command{
		Use:   "check <signature-file>",
		Short: "Load a signature file and report unrecognized attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := fingerprint.LoadDatabase(args[0])
			if err != nil {
				return err
			}
			return formatCheck(cmd.OutOrStdout(), db)
		},
	}

	signaturesCmd.AddCommand(listSignaturesCmd, checkSignaturesCmd)

	var (
		mac   string
		runID string
	)
	hostsCmd := &cobra.Command{
		Use:   "hosts",
		Short: "List stored classifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(provider, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			var classifications []*model.Classification
			if mac != "" {
				classifications, err = repo.GetClassificationsByMAC(mac)
			} else {
				filters := map[string]interface{}{}
				if runID != "" {
					filters["run_id"] = runID
				}
				classifications, err = repo.GetClassifications(filters)
			}
			if err != nil {
				return fmt.Errorf("failed to get classifications: %w", err)
			}
			return formatClassifications(cmd.OutOrStdout(), classifications, cfg.Output.Format)
		},
	}
	hostsCmd.Flags().String("output", defaults.Output.Format, "Output format: table, json, csv")
	hostsCmd.Flags().StringVar(&mac, "mac", "", "Only show this client MAC address")
	hostsCmd.Flags().StringVar(&runID, "run", "", "Only show this run ID")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "dhcpfp %s\n", version.GetFullVersion())
			if info["buildTime"] != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built %s\n", info["buildTime"])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", info["goVersion"])
			return nil
		},
	}

	rootCmd.AddCommand(classifyCmd, signaturesCmd, hostsCmd, versionCmd)
	return rootCmd
}

func loadSignatures(path string) (*fingerprint.Database, error) {
	if path == "" {
		return fingerprint.LoadBuiltin()
	}
	return fingerprint.LoadDatabase(path)
}

// resolveRegistry returns the injected registry, or one holding the Satori
// fingerprinter over the configured signatures.
func resolveRegistry(provider *DependencyProvider, cfg config.Config) (*fingerprint.Registry, error) {
	if provider.Registry != nil {
		return provider.Registry, nil
	}
	db, err := loadSignatures(cfg.Signatures.Path)
	if err != nil {
		return nil, err
	}
	provider.Registry = fingerprint.NewRegistry(fingerprint.NewSatoriDHCPFingerprinter(db))
	return provider.Registry, nil
}

func signatureSource(registry *fingerprint.Registry) string {
	fp, ok := registry.Lookup(fingerprint.SatoriDHCPName)
	if !ok {
		return ""
	}
	if satori, ok := fp.(*fingerprint.SatoriDHCPFingerprinter); ok && satori.Database() != nil {
		return satori.Database().Source()
	}
	return ""
}

func openRepository(provider *DependencyProvider, cfg config.Config) (repository.Repository, error) {
	if provider.Repository != nil {
		return provider.Repository, nil
	}
	repo, err := repository.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Debug().Str("path", cfg.Database.Path).Msg("Opened database")
	return repo, nil
}

// classifyObservations asks every registered fingerprinter about every
// observation. Each pair yields one classification, matched or not.
func classifyObservations(registry *fingerprint.Registry, runID string, observations []*model.Observation) []*model.Classification {
	fingerprinters := registry.List()
	classifications := make([]*model.Classification, 0, len(observations)*len(fingerprinters))
	for _, obs := range observations {
		identified := make(map[string]fingerprint.Identification)
		for _, id := range registry.Identify(obs.Packets) {
			identified[id.Fingerprinter] = id
		}
		for _, fp := range fingerprinters {
			c := newClassification(runID, obs, fp.Name())
			if id, ok := identified[fp.Name()]; ok {
				c.Labels = id.Labels
				c.Weight = id.Weight
				c.Matched = true
			}
			classifications = append(classifications, c)
		}
	}
	return classifications
}

func newClassification(runID string, obs *model.Observation, fingerprinter string) *model.Classification {
	c := &model.Classification{
		RunID:         runID,
		Timestamp:     obs.Timestamp,
		ClientMAC:     obs.ClientMAC,
		ClientIP:      obs.ClientIP,
		TransactionID: obs.TransactionID,
		Fingerprinter: fingerprinter,
	}
	dhcp := obs.DHCP()
	if dhcp == nil {
		return c
	}
	c.MessageType, _ = model.MessageTypeName(dhcp.MessageType)
	c.OptionList = fingerprint.OptionList(dhcp)
	if opt, ok := dhcp.Option(model.DHCPOptVendorClassID); ok {
		c.VendorClass, _ = fingerprint.VendorClass(opt.Value)
	}
	return c
}

func onlyMatched(classifications []*model.Classification) []*model.Classification {
	var out []*model.Classification
	for _, c := range classifications {
		if c.Matched {
			out = append(out, c)
		}
	}
	return out
}

func storeRun(provider *DependencyProvider, cfg config.Config, runID, source string, classifications []*model.Classification) error {
	repo, err := openRepository(provider, cfg)
	if err != nil {
		return err
	}
	if err := repo.AddClassifications(classifications); err != nil {
		repo.Close()
		return fmt.Errorf("failed to store classifications: %w", err)
	}
	metadata := [][2]string{
		{metaLastRun, runID},
		{metaVersion, version.GetFullVersion()},
		{metaRunPrefix + runID + ":signatures", source},
	}
	for _, kv := range metadata {
		if err := repo.SetKeyValue(kv[0], kv[1]); err != nil {
			repo.Close()
			return fmt.Errorf("failed to store run metadata: %w", err)
		}
	}
	if err := repo.Commit(); err != nil {
		repo.Close()
		return err
	}
	if err := repo.Close(); err != nil {
		return err
	}
	log.Info().Str("run_id", runID).Int("stored", len(classifications)).Msg("Stored classifications")
	return nil
}

// reportError prints err with any hints and returns the process exit code.
func reportError(w io.Writer, err error) int {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %v\n", red("Error:"), err)
	for _, hint := range fingerprint.Suggestions(err) {
		fmt.Fprintf(w, "  %s\n", hint)
	}
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return 2
	}
	return fingerprint.ExitCode(err)
}

func main() {
	provider := &DependencyProvider{}
	rootCmd := newRootCmd(provider)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(color.Error, err))
	}
}
