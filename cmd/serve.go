package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/secrets"
	"github.com/spigell/profile-fusion/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the profile API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		token, err := secrets.Load(secrets.Source{
			Name:     "server token",
			Value:    rt.config.Server.Token,
			File:     rt.config.Server.TokenFile,
			Optional: true,
		})
		if err != nil {
			return fmt.Errorf("loading server token: %w", err)
		}
		if token == "" {
			rt.logger.Warn("server token is not set, the api is unauthenticated")
		}

		rt.logger.Info("starting the profile-fusion server", zap.String("version", version))

		handler := server.NewHandler(server.Deps{
			Service: rt.service,
			Logger:  rt.logger.Named("http"),
			Token:   token,
		})

		return server.ListenAndServe(cmd.Context(), rt.config.Server.Addr, handler, rt.logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
