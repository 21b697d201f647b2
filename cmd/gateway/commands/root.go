// Package commands implements the zentalk-gateway command line.
package commands

import (
	"errors"
	"io/fs"

	"github.com/ZentaChain/zentalk-gateway/pkg/config"
	"github.com/ZentaChain/zentalk-gateway/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	envFile    string

	cfg config.Config
	log *zap.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "zentalk-gateway",
		Short:         "MTProto gateway for ZenTalk clients",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is normal outside development
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
			if log, err = logging.New(cfg.Log); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading ZENTALK_* variables")

	root.AddCommand(serveCmd(), workerCmd())
	return root.Execute()
}
