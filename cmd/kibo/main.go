// Kibo - a picture-talk companion for young children.
// Serves the browser UI and runs the conversation loop: look at a picture,
// talk about it, listen, repeat.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/playwell-labs/kibo/internal/config"
	"github.com/playwell-labs/kibo/internal/log"
	"github.com/playwell-labs/kibo/pkg/chat"
	"github.com/playwell-labs/kibo/pkg/companion"
	"github.com/playwell-labs/kibo/pkg/imagesource"
	"github.com/playwell-labs/kibo/pkg/keystore"
	"github.com/playwell-labs/kibo/pkg/speech"
	"github.com/playwell-labs/kibo/pkg/web"
)

func main() {
	// .env is optional; real env vars win either way
	godotenv.Load()

	port := flag.String("port", config.Port(), "HTTP port")
	model := flag.String("model", "", "Chat model name (overrides the client default)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.With("component", "main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := keystore.New(config.DataDir())

	bridge := web.NewBridge()
	adapter := speech.NewAdapter(bridge.Synthesizer(), bridge.Recognizer())

	ctrl := companion.NewController(adapter,
		companion.WithContext(ctx),
		companion.WithImage(imagesource.Default()),
	)
	defer ctrl.Close()

	var modelOpts []chat.Option
	if url := config.BaseURL(); url != "" {
		modelOpts = append(modelOpts, chat.WithBaseURL(url))
	}
	if *model != "" {
		modelOpts = append(modelOpts, chat.WithModel(*model))
	}

	// A key from the environment beats the saved one; either arms live mode
	// at boot. With neither, the UI offers key entry and demo mode.
	key := config.APIKey()
	if key == "" {
		saved, err := store.Load()
		if err != nil {
			logger.Warn("credential store unreadable", "error", err)
		}
		key = saved
	}
	if keystore.Valid(key) {
		opts := append([]chat.Option{}, modelOpts...)
		client, err := chat.NewOpenAIClient(append(opts, chat.WithAPIKey(key))...)
		if err != nil {
			logger.Warn("live client unavailable", "error", err)
		} else {
			ctrl.SetClient(client)
			logger.Info("live mode armed")
		}
	} else {
		logger.Info("no credential, demo mode only until a key is saved")
	}

	srv := web.NewServer(*port, ctrl, store,
		web.WithBridge(bridge),
		web.WithModelOptions(modelOpts...),
	)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server stopped", "error", err)
	}
}
