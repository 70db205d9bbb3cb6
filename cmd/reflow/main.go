// Command reflow is the CLI front end for the reflow engine: a one-shot
// "run" that reflows a bundle of JSON documents and prints the result, a
// "validate" that checks a schedule without reflowing it, and a "serve"
// that hosts the HTTP API and re-reflows on file change. Shape and flag
// binding are grounded on anasdox-workline/cmd/wl/main.go's cobra +
// viper root command.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dsi-mfg/reflow/internal/config"
	"github.com/dsi-mfg/reflow/internal/constraint"
	"github.com/dsi-mfg/reflow/internal/loader"
	"github.com/dsi-mfg/reflow/internal/logging"
	"github.com/dsi-mfg/reflow/internal/metrics"
	"github.com/dsi-mfg/reflow/internal/model"
	"github.com/dsi-mfg/reflow/internal/reflow"
	"github.com/dsi-mfg/reflow/internal/server"
	"github.com/dsi-mfg/reflow/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "reflow",
	Short: "Reflow re-schedules work orders around machine and calendar conflicts",
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("REFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("centers", "", "path to the work centers JSON document")
	rootCmd.PersistentFlags().String("orders", "", "path to the work orders JSON document")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON instead of a table")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("centers_path", rootCmd.PersistentFlags().Lookup("centers"))
	_ = viper.BindPFlag("orders_path", rootCmd.PersistentFlags().Lookup("orders"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("centers_path"); p != "" {
		cfg.CentersPath = p
	}
	if p := viper.GetString("orders_path"); p != "" {
		cfg.OrdersPath = p
	}
	if cfg.CentersPath == "" || cfg.OrdersPath == "" {
		return nil, fmt.Errorf("--centers and --orders (or config file / REFLOW_CENTERS_PATH, REFLOW_ORDERS_PATH) are required")
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single reflow pass over the configured input files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bundle, err := loader.LoadBundle(cfg.CentersPath, cfg.OrdersPath)
			if err != nil {
				return err
			}
			result, err := reflow.Reflow(cmd.Context(), bundle.WorkCenters, bundle.WorkOrders)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configured input files for conflicts without reflowing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bundle, err := loader.LoadBundle(cfg.CentersPath, cfg.OrdersPath)
			if err != nil {
				return err
			}
			schedule := model.Schedule{}
			for _, o := range bundle.WorkOrders {
				schedule[o.WorkCenterID] = append(schedule[o.WorkCenterID], o)
			}
			result := constraint.ValidateSchedule(schedule, bundle.WorkCenters)
			if viper.GetBool("json") {
				return printJSON(result)
			}
			if result.Valid {
				fmt.Println("schedule is valid")
				return nil
			}
			for _, e := range result.Errors {
				fmt.Println("-", e)
			}
			return fmt.Errorf("schedule has %d conflict(s)", len(result.Errors))
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, dashboard, and metrics endpoint, watching the input files for changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}

			logger := logging.New(cfg)
			rec := metrics.New()
			srv := server.New(cfg, logger, rec)

			runOnce := func(ctx context.Context) error {
				bundle, err := loader.LoadBundle(cfg.CentersPath, cfg.OrdersPath)
				if err != nil {
					return err
				}
				return srv.RunAndRecord(ctx, bundle.WorkCenters, bundle.WorkOrders)
			}

			if err := runOnce(cmd.Context()); err != nil {
				logger.Error("initial reflow failed", "error", err.Error())
			}

			watcher := watch.New(cfg.CentersPath, cfg.OrdersPath, cfg.WatchDebounce, runOnce, logger)
			watchCtx, cancelWatch := context.WithCancel(cmd.Context())
			defer cancelWatch()
			go func() {
				if err := watcher.Run(watchCtx); err != nil {
					logger.Error("watcher stopped", "error", err.Error())
				}
			}()

			httpSrv := &http.Server{Addr: cfg.ServerAddr, Handler: srv}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(ctx)
			}()

			logger.Info("serving reflow", "addr", cfg.ServerAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func printResult(result model.ReflowResult) error {
	if viper.GetBool("json") {
		return printJSON(result)
	}

	fmt.Printf("run %s: success=%v\n%s\n\n", result.RunID, result.Success, result.Explanation)
	for _, e := range result.Errors {
		fmt.Println("error:", e)
	}
	if len(result.Changes) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Work Order", "Old Start", "New Start", "Delay (min)", "Reason"})
	for _, c := range result.Changes {
		tw.AppendRow(table.Row{c.WorkOrderNumber, c.OldStart, c.NewStart, c.DelayMinutes, c.Reason})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
