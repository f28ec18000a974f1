package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrek82/tabula/config"
	"github.com/shrek82/tabula/core"
)

type rootOptions struct {
	configFile string
	driver     string
	dsn        string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "tabula",
		Short:         "Inspect database schemas and generate tabula entities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default ./tabula.yml)")
	flags.StringVar(&opts.driver, "driver", "", "database driver (sqlite3, mysql, postgres, pgx)")
	flags.StringVar(&opts.dsn, "dsn", "", "data source name")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (silent, error, warn, info, debug)")

	rootCmd.AddCommand(newTablesCmd(opts))
	rootCmd.AddCommand(newDescribeCmd(opts))
	rootCmd.AddCommand(newProbeCmd(opts))
	rootCmd.AddCommand(newGenCmd(opts))
	return rootCmd
}

// open loads the config file and applies the flag overrides on top.
func (o *rootOptions) open() (*core.DB, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.DSN = o.dsn
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("no dsn given: pass --dsn, set TABULA_DSN or add dsn to the config file")
	}
	return config.Open(cfg)
}
