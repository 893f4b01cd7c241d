package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/intentd/intentd/engine"
	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/feedback"
	"github.com/intentd/intentd/engine/memory"
	"github.com/intentd/intentd/engine/metrics"
	"github.com/intentd/intentd/internal/profile"
	"github.com/intentd/intentd/internal/version"
	"github.com/intentd/intentd/server"
	"github.com/intentd/intentd/store"
	"github.com/intentd/intentd/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "intentd",
	Short: `A hybrid two-stage intent resolution engine: semantic retrieval over a fixed corpus plus Fast Memory, verified and boosted by a 12-factor context matrix.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Load .env from the working directory when present.
		_ = godotenv.Load()
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:              viper.GetString("mode"),
			Addr:              viper.GetString("addr"),
			Port:              viper.GetInt("port"),
			Data:              viper.GetString("data"),
			Driver:            viper.GetString("driver"),
			DSN:               viper.GetString("dsn"),
			CorpusPath:        viper.GetString("corpus"),
			FallbackThreshold: viper.GetFloat64("fallback-threshold"),
			MemoryAutosave:    viper.GetBool("memory-autosave"),
			NormalizeInput:    viper.GetBool("normalize-input"),
			Version:           version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return err
		}
		if !instanceProfile.IsEmbedderConfigured() {
			return fmt.Errorf("no embedding provider configured, set INTENTD_EMBEDDING_API_KEY (or use the ollama provider)")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		embedder := engine.NewEmbeddingService(engine.EmbeddingConfig{
			APIKey:     instanceProfile.EmbeddingAPIKey,
			BaseURL:    instanceProfile.EmbeddingBaseURL,
			Model:      instanceProfile.EmbeddingModel,
			Dimensions: instanceProfile.EmbeddingDimensions,
		})

		cat, err := catalog.Load(ctx, instanceProfile.CorpusPath, embedder)
		if err != nil {
			slog.Error("failed to load intent corpus", "path", instanceProfile.CorpusPath, "error", err)
			return err
		}
		slog.Info("intent corpus loaded", "path", instanceProfile.CorpusPath, "intents", cat.Count())

		// Demo mode runs fully in-process; other modes persist Fast Memory
		// and the feedback trail in the database.
		var mem memory.Store
		var persistence feedback.Persistence
		if instanceProfile.Mode == "demo" {
			mem = memory.NewInProcess()
			persistence = feedback.NewInMemoryStorage()
		} else {
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				slog.Error("failed to create db driver", "error", err)
				return err
			}
			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				slog.Error("failed to migrate", "error", err)
				return err
			}
			defer storeInstance.Close()
			mem = memory.NewPersistent(storeInstance)
			persistence = storeInstance
		}

		exporter := metrics.NewExporter(metrics.DefaultConfig())
		loop := feedback.NewLoop(mem, persistence)
		resolver, err := engine.NewResolver(cat, embedder, mem, loop, exporter, engine.Config{
			FallbackThreshold: instanceProfile.FallbackThreshold,
			MemoryAutosave:    instanceProfile.MemoryAutosave,
			NormalizeInput:    instanceProfile.NormalizeInput,
		})
		if err != nil {
			return err
		}

		s := server.New(instanceProfile, resolver, exporter)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			if err := s.Shutdown(context.Background()); err != nil {
				slog.Error("shutdown failed", "error", err)
			}
			cancel()
		}()

		printGreetings(instanceProfile)
		if err := s.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("corpus", "", "path to the intent corpus JSON")
	rootCmd.PersistentFlags().Float64("fallback-threshold", 0.6, "minimum winning score before falling back to uncertainty")
	rootCmd.PersistentFlags().Bool("memory-autosave", true, "write high-confidence resolutions into fast memory")
	rootCmd.PersistentFlags().Bool("normalize-input", true, "normalize slang and phonetic spellings before embedding")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "corpus", "fallback-threshold", "memory-autosave", "normalize-input"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("intentd")
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("intentd %s started\n", profile.Version)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Corpus: %s\n", profile.CorpusPath)
	if profile.Mode != "demo" {
		fmt.Printf("Database driver: %s\n", profile.Driver)
	}
	if len(profile.Addr) == 0 {
		fmt.Printf("Listening on port %d\n", profile.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
