// Command cachectl inspects and maintains the translation cache offline.
// The API server holds an exclusive lock on the database, so stop it first.
package main

import (
	"context"
	"os"

	"lyrics-translator-go/config"
	"lyrics-translator-go/logcolors"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetLevel(log.WarnLevel)

	conf, err := config.Load()
	if err != nil {
		log.Fatalf("%s %v", logcolors.LogConfig, err)
	}

	app := newApp(conf, os.Stdout)
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("%s %v", logcolors.LogCache, err)
	}
}
