// Command mailbridge is a multi-account email tool server. It speaks
// the Model Context Protocol over stdio so a tool-calling client can
// search, read, send, and organize mail across IMAP and Gmail accounts
// through one operation surface.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/cache"
	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/mailbox"
	"github.com/nhle/mailbridge/internal/mcp"
	"github.com/nhle/mailbridge/internal/model"
)

var (
	version = "dev"
	commit  = "none"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "mailbridge",
	Short: "Multi-account email tool server",
	Long: `mailbridge exposes mailbox operations across IMAP and Gmail accounts
as MCP tools over stdio. Run "mailbridge setup" to onboard an account,
then point your MCP client at "mailbridge serve".`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	// Running the bare binary starts the server, matching how MCP
	// clients typically invoke it.
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP tool server on stdin/stdout",
	RunE:  runServe,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Onboard an email account interactively",
	RunE:  runSetup,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	RunE:  runAccounts,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(accountsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildManager wires the account registry and credential store from the
// loaded configuration. Stdout belongs to the JSON-RPC stream, so all
// diagnostics go to stderr.
func buildManager(cfg *model.AppConfig) (*account.Manager, error) {
	reg, err := account.NewRegistry(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	creds := credential.NewStore(cfg.DataDir)
	return account.NewManager(reg, creds), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "mailbridge: ", log.LstdFlags)

	cfg, err := model.LoadConfig(configPathFlag)
	if err != nil {
		logger.Printf("startup failed: %v", err)
		return err
	}

	manager, err := buildManager(cfg)
	if err != nil {
		logger.Printf("startup failed: %v", err)
		return err
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.NewStore(filepath.Join(cfg.DataDir, "summaries.db"))
		if err != nil {
			// The cache is an optimization. Serve without it.
			logger.Printf("summary cache disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	service := mailbox.NewService(manager, store, cfg, logger)
	defer service.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(service, logger)
	logger.Printf("serving MCP on stdio (data dir %s)", cfg.DataDir)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Printf("server stopped: %v", err)
		return err
	}
	return nil
}

func runAccounts(cmd *cobra.Command, args []string) error {
	cfg, err := model.LoadConfig(configPathFlag)
	if err != nil {
		return err
	}
	manager, err := buildManager(cfg)
	if err != nil {
		return err
	}

	entries, err := manager.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No accounts configured. Run \"mailbridge setup\" to add one.")
		return nil
	}

	active, _ := manager.Active()
	for _, e := range entries {
		marker := " "
		if e.Email == active {
			marker = "*"
		}
		alias := ""
		if e.Alias != "" {
			alias = " (" + e.Alias + ")"
		}
		fmt.Printf("%s %s%s [%s]\n", marker, e.Email, alias, e.Provider)
	}
	return nil
}
