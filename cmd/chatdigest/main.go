package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/chatdigest/ai/observability/logging"
	"github.com/hrygo/chatdigest/internal/profile"
	"github.com/hrygo/chatdigest/internal/version"
	"github.com/hrygo/chatdigest/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "chatdigest",
		Short: `A QQ group bot that summarizes chat history with an LLM and replies with a rendered image.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// systemd units provide their environment through EnvironmentFile.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			mode := viper.GetString("mode")
			level, err := logging.ParseLevel(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			logging.Setup(logging.Options{Level: level, JSON: mode == "prod"})

			instanceProfile := &profile.Profile{
				Mode:     mode,
				Addr:     viper.GetString("addr"),
				Port:     viper.GetInt("port"),
				Data:     viper.GetString("data"),
				Timezone: viper.GetString("timezone"),
				Version:  version.GetCurrentVersion(mode),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := server.NewServer(ctx, instanceProfile)
			if err != nil {
				slog.Error("failed to create server", "error", err)
				return err
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				return err
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.StringFull())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of the OneBot event webhook")
	rootCmd.PersistentFlags().String("data", "", "directory holding the prompt and admin documents")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("timezone", "", "IANA timezone for transcript timestamps (default local)")

	for _, name := range []string{"mode", "addr", "port", "data", "log-level", "timezone"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("chatdigest")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("ChatDigest %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("LLM: %s (%s)\n", profile.ALLMProvider, profile.ALLMModel)
	fmt.Printf("OneBot API: %s\n", profile.OneBotURL)

	host := profile.Addr
	if host == "" {
		host = "localhost"
	}
	fmt.Printf("Point the OneBot reverse HTTP POST at: http://%s:%d/onebot/event\n", host, profile.Port)
	fmt.Printf("Metrics: http://%s:%d/metrics\n", host, profile.Port)

	fmt.Println()
	fmt.Println("Commands: /分析聊天记录 (reply to a forwarded bundle), /现场分析 <count> [debug]")
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
