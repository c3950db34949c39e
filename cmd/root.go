package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/metropolis/internal/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metropolis",
	Short: "Plan city itineraries from live event listings.",
	Long: `metropolis searches for events happening in a city on the dates you pick,
asks a language model to arrange them into a schedule that fits your budget,
and serves the result to the mobile app along with maps and calendar exports.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.metropolis.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for provider calls (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("store", "", "Itinerary store: memory, sqlite, redis or mongo (overrides store.backend)")

	viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)

	if err := godotenv.Load(); err != nil {
		utils.Log.Debug("No .env file found; using system environment")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".metropolis")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Variable names used by existing deployments
	viper.BindEnv("events.api_key", "SERPAPI_KEY")
	viper.BindEnv("ai.api_key", "GEMINI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("ai.model", "GEMINI_MODEL")
	viper.BindEnv("maps.api_key", "GOOGLE_MAPS_API_KEY")
	viper.BindEnv("server.host", "API_HOST")
	viper.BindEnv("server.port", "API_PORT")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			utils.Log.Warnf("Could not read config file: %v", err)
		}
	} else {
		utils.Log.Debugf("Using config file %s", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.public_url", "")
	viper.SetDefault("server.rate_limit", 10)
	viper.SetDefault("server.rate_burst", 3)

	viper.SetDefault("events.api_key", "")
	viper.SetDefault("events.endpoint", "")
	viper.SetDefault("events.timeout", "15s")
	viper.SetDefault("events.max_results", 15)
	viper.SetDefault("events.date_in_query", false)

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("ai.timeout", "45s")
	viper.SetDefault("ai.temperature", 0.4)

	viper.SetDefault("maps.api_key", "")
	viper.SetDefault("maps.timeout", "10s")
	viper.SetDefault("maps.retries", 2)
	viper.SetDefault("maps.cache_ttl", "24h")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.sqlite.path", "")
	viper.SetDefault("store.redis.addr", "localhost:6379")
	viper.SetDefault("store.redis.password", "")
	viper.SetDefault("store.redis.db", 0)
	viper.SetDefault("store.redis.ttl", "0s")
	viper.SetDefault("store.mongo.uri", "")
	viper.SetDefault("store.mongo.database", "metropolis")
}
