package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// envBindings maps a viper config key to the environment variable
// config.Load reads it from, so a config file can supply anything the
// environment otherwise would without config.Load itself knowing about
// viper.
var envBindings = []struct {
	viperKey string
	envVar   string
}{
	{"web_addr", "CLEF_WEB_ADDR"},
	{"database_dsn", "CLEF_DATABASE_DSN"},
	{"tls_cert", "CLEF_TLS_CERT"},
	{"tls_key", "CLEF_TLS_KEY"},
	{"idle_threshold", "CLEF_IDLE_THRESHOLD"},
	{"script_dir", "CLEF_SCRIPT_DIR"},
	{"settings_schema", "CLEF_SETTINGS_SCHEMA"},
	{"history_dir", "CLEF_HISTORY_DIR"},
	{"log_level", "CLEF_LOG_LEVEL"},
	{"log_path", "CLEF_LOG_PATH"},
	{"log_max_size_mb", "CLEF_LOG_MAX_SIZE_MB"},
	{"log_max_backups", "CLEF_LOG_MAX_BACKUPS"},
	{"log_compress", "CLEF_LOG_COMPRESS"},
	{"chat_addr", "CLEF_CHAT_ADDR"},
	{"bot_login", "CLEF_BOT_LOGIN"},
	{"streamer_login", "CLEF_STREAMER_LOGIN"},
	{"chat_ping_interval", "CLEF_CHAT_PING_INTERVAL"},
	{"chat_rate_limit_per_second", "CLEF_CHAT_RATE_LIMIT_PER_SECOND"},
	{"chat_rate_limit_burst", "CLEF_CHAT_RATE_LIMIT_BURST"},
	{"reconnect_backoff_max", "CLEF_RECONNECT_BACKOFF_MAX"},
	{"join_message", "CLEF_JOIN_MESSAGE"},
	{"leave_message", "CLEF_LEAVE_MESSAGE"},
	{"oauth_addr", "CLEF_OAUTH_ADDR"},
	{"oauth_path", "CLEF_OAUTH_PATH"},
	{"platform_client_id", "CLEF_PLATFORM_CLIENT_ID"},
	{"platform_client_secret", "CLEF_PLATFORM_CLIENT_SECRET"},
	{"spotify_client_id", "CLEF_SPOTIFY_CLIENT_ID"},
	{"spotify_client_secret", "CLEF_SPOTIFY_CLIENT_SECRET"},
	{"token_file", "CLEF_TOKEN_FILE"},
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clef",
		Short: "Clef is a chat-channel automation bot",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfigFile()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML/TOML/JSON config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// loadConfigFile reads an optional config file through viper and copies
// every bound key present in it into the process environment, so
// config.Load (which only ever reads os.Getenv) picks it up without being
// made aware of viper. Environment variables already set take precedence
// over the file.
func loadConfigFile() error {
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	for _, binding := range envBindings {
		if !viper.IsSet(binding.viperKey) {
			continue
		}
		if _, present := os.LookupEnv(binding.envVar); present {
			continue
		}
		if err := os.Setenv(binding.envVar, viper.GetString(binding.viperKey)); err != nil {
			return err
		}
	}
	return nil
}
