package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/himanishpuri/NoteGram/internal/config"
	"github.com/himanishpuri/NoteGram/pkg/logger"
	"github.com/himanishpuri/NoteGram/pkg/notegram"
)

var (
	port           int
	configPath     string
	dbPath         string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&configPath, "config", getEnvOrDefault("NOTEGRAM_CONFIG", ""), "Path to a TOML or YAML config file")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite run catalog (overrides config)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(s string) []string {
	if s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Uploads are answered in the response; nothing is written to disk.
	cfg.Save, cfg.Draw = false, false
	opts, err := notegram.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	service, err := notegram.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           port,
		DBPath:         cfg.DBPath,
		WindowLength:   cfg.WindowLength,
		Backend:        cfg.FFTBackend,
		AllowedOrigins: parseOrigins(allowedOrigins),
	})
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
