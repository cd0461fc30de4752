// @title           Legal Consultancy API
// @version         1.0
// @description     Lawyer directory, consultation booking, consultation chat with document sharing, and an AI legal assistant gateway.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <identity-provider session token>
package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "github.com/aldoetobex/legal-consult-backend/docs"
)

var logLevel = "info"

var rootCmd = &cobra.Command{
	Use:   "legal-consult",
	Short: "Legal consultancy backend",
	Long: `Serves the lawyer directory, consultation booking and chat, and relays
questions to the AI legal assistant.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			log.WithError(err).Fatal("cannot parse log-level")
		}
		log.SetLevel(level)
		log.Debug("debug logging enabled")
	},
}

func main() {
	// Millisecond precision helps when reading request latencies.
	formatter := new(log.TextFormatter)
	formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)

	rootCmd.AddCommand(NewServeCommand())

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace,debug,info,warn,error) (default info)")

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("could not execute root command")
	}
}
