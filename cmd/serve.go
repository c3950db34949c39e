package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/metropolis/internal/server"
	"github.com/sw33tLie/metropolis/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the itinerary HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Config{
			Planner:       a.planner,
			Resolver:      a.resolver,
			Routes:        a.routes,
			ICS:           a.ics,
			PDF:           a.pdf,
			RatePerMinute: viper.GetInt("server.rate_limit"),
			RateBurst:     viper.GetInt("server.rate_burst"),
			Log:           utils.Log,
		})

		addr := net.JoinHostPort(viper.GetString("server.host"), strconv.Itoa(viper.GetInt("server.port")))
		if err := srv.Start(ctx, addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides server.host / API_HOST)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides server.port / API_PORT)")
	serveCmd.Flags().String("public-url", "", "Public base URL, used for calendar links in PDF exports")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.public_url", serveCmd.Flags().Lookup("public-url"))
}
