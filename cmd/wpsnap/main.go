package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"wpsnap/internal/app"
	"wpsnap/internal/config"
	"wpsnap/internal/snap"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Backup", "Restore").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation, snap.UUIDGenerator{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "wpsnap",
	Short: "Snapshot and recovery tool for a containerized web-publishing stack",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("from-env")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if envFile != "" {
			if err := config.ImportEnvFile(cfg, envFile); err != nil {
				return fmt.Errorf("importing %s: %w", envFile, err)
			}
			cfg.EnvFile = envFile
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Compose file:    %s\n", cfg.ComposeFile)
		fmt.Printf("DB service:      %s\n", cfg.Stack.DBService)
		fmt.Printf("App service:     %s\n", cfg.Stack.AppService)
		fmt.Printf("Proxy service:   %s\n", cfg.Stack.ProxyService)
		fmt.Printf("Database volume: %s\n", cfg.Volumes.Database)
		fmt.Printf("Files volume:    %s\n", cfg.Volumes.Files)
		fmt.Printf("Vault:           %s\n", cfg.Vault.Type)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup [OUTDIR]",
	Short: "Snapshot the database and file volume",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := "backup"
		if len(args) > 0 {
			outDir = args[0]
		}

		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backup(cmd.Context(), outDir)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup written to %s\n", res.Dir)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore [DIR]",
	Short: "Restore the stack from a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := snap.RestoreRequest{}
		req.Dir, _ = cmd.Flags().GetString("dir")
		if len(args) > 0 {
			if req.Dir != "" {
				return fmt.Errorf("directory given both as argument and --dir")
			}
			req.Dir = args[0]
		}
		req.DatabasePath, _ = cmd.Flags().GetString("db")
		req.FilesPath, _ = cmd.Flags().GetString("wpfiles")
		req.Yes, _ = cmd.Flags().GetBool("yes")
		req.AllowMismatch, _ = cmd.Flags().GetBool("allow-mismatch")
		req.SSLCheck, _ = cmd.Flags().GetBool("ssl-check")
		req.ForceSSL, _ = cmd.Flags().GetBool("force-ssl")

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(cmd.Context(), req); err != nil {
			if errors.Is(err, snap.ErrRestoreDeclined) {
				fmt.Println("Restore aborted.")
				return nil
			}
			return fmt.Errorf("restore failed: %w", err)
		}
		return nil
	},
}

// up / down / status commands
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the stack in dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Up")
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Up(cmd.Context())
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Down")
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Down(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List running services",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		running, err := a.Running(cmd.Context())
		if err != nil {
			return err
		}
		if len(running) == 0 {
			fmt.Println("No services running.")
			return nil
		}
		for _, s := range running {
			fmt.Println(s)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded backup and restore runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// cert commands
var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage TLS certificates",
}

var certCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check certificate expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CertCheck")
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.CertCheck()
		if err != nil {
			return err
		}
		fmt.Printf("Certificate state: %s\n", state)
		return nil
	},
}

var certIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue or renew the certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("CertIssue")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.CertIssue(cmd.Context(), force)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("from-env", "", "Import settings from a legacy environment file")

	restoreCmd.Flags().String("dir", "", "Directory to auto-locate artifacts in")
	restoreCmd.Flags().String("db", "", "Explicit database artifact (.sql/.sql.gz or .tar/.tar.gz)")
	restoreCmd.Flags().String("wpfiles", "", "Explicit file-volume artifact")
	restoreCmd.Flags().BoolP("yes", "y", false, "Skip interactive confirmation")
	restoreCmd.Flags().Bool("allow-mismatch", false, "Allow artifacts with different timestamps")
	restoreCmd.Flags().Bool("ssl-check", false, "Evaluate and renew certificates after restore")
	restoreCmd.Flags().Bool("force-ssl", false, "Force certificate re-issuance after restore")

	certCmd.AddCommand(certCheckCmd)
	certCmd.AddCommand(certIssueCmd)
	certIssueCmd.Flags().Bool("force", false, "Re-issue even if the certificate is still valid")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(certCmd)
}
