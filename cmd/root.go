package main

import (
	"fmt"
	"os"

	"github.com/kirsrus/attendance/server/pkg/config"
	"github.com/kirsrus/attendance/server/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log *logrus.Logger

	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Учёт посещений по распознаванию лиц",
	Long: `Сервер учёта посещений: распознаёт лица с камер и изображений, ведёт реестр
зарегистрированных персон и журнал отметок (не более одной отметки персоны за день).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute запуск команды из аргументов командной строки
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error(errors.ErrorStack(err))
		}
		fmt.Fprintf(os.Stderr, "ОШИБКА: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	path := os.Getenv(config.EnvPrefix + "_CONFIG")
	if path == "" {
		path = config.FileName
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", path, "Файл конфигурации")
}

func initConfig() error {
	// Файл .env необязателен
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return errors.Trace(err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	log = logger.New(logger.Config{
		Path:    cfg.Log.Path,
		File:    cfg.Log.Filename,
		Level:   level,
		Console: cfg.Log.Console,
	})
	return nil
}
