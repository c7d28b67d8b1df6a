// Command pdfbot runs the PDF tools Telegram bot.
package main

import (
	"log"

	corecmd "github.com/m3rciful/pdfbot/core/cmd"
	"github.com/m3rciful/pdfbot/internal/app"
	"github.com/m3rciful/pdfbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{".env"},
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
