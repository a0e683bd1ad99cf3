// ABOUTME: Interactive config generation for chat-gateway init
// ABOUTME: Prompts for listener, database, tailscale and logging settings and writes YAML

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr       string
	AllowedOrigins []string
	DBDriver       string
	DBPath         string
	JWTSecret      string

	TailscaleEnabled   bool
	TailscaleHostname  string
	TailscaleAuthKey   string
	TailscaleEphemeral bool

	LogLevel  string
	LogFormat string
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("chat-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	outputFile := prompt(reader, os.Stdout, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, os.Stdout, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	answers, err := askInit(reader, os.Stdout)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the JWT secret.
	if err := os.WriteFile(outputFile, []byte(renderConfig(answers)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(answers.DBPath)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  chat-gateway serve\n")
	return nil
}

// askInit prompts for every setting except the output path.
func askInit(reader *bufio.Reader, w io.Writer) (initAnswers, error) {
	var a initAnswers

	fmt.Fprintln(w, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, w, "HTTP address", "localhost:8080")
	if origins := prompt(reader, w, "Allowed WebSocket origins (comma separated, * for any)", "*"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				a.AllowedOrigins = append(a.AllowedOrigins, o)
			}
		}
	}

	fmt.Fprintln(w, "\n--- Database Configuration ---")
	a.DBDriver = prompt(reader, w, "SQLite driver (sqlite/sqlite3)", "sqlite")
	a.DBPath = prompt(reader, w, "SQLite database path", filepath.Join(getDataPath(), "chat.db"))

	secret, err := generateSecret()
	if err != nil {
		return a, err
	}
	a.JWTSecret = secret

	fmt.Fprintln(w, "\n--- Tailscale Configuration ---")
	a.TailscaleEnabled = yes(prompt(reader, w, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TailscaleHostname = prompt(reader, w, "Tailscale hostname", "chat-gateway")
		a.TailscaleAuthKey = prompt(reader, w, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TailscaleEphemeral = yes(prompt(reader, w, "Ephemeral node?", "no"))
	}

	fmt.Fprintln(w, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, w, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, w, "Log format (text/json)", "text")

	return a, nil
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# chat-gateway configuration\n")
	cfg.WriteString("# Generated by chat-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	if len(a.AllowedOrigins) > 0 {
		cfg.WriteString("  allowed_origins:\n")
		for _, o := range a.AllowedOrigins {
			cfg.WriteString(fmt.Sprintf("    - %q\n", o))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", a.DBDriver))
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
	cfg.WriteString("  token_ttl: \"1h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.TailscaleEnabled))
	if a.TailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TailscaleHostname))
		if a.TailscaleAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", a.TailscaleAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.TailscaleEphemeral))
	}
	cfg.WriteString("\n")

	cfg.WriteString("realtime:\n")
	cfg.WriteString("  subscriber_backlog: 100\n")
	cfg.WriteString("  channel_idle_ttl: \"10m\"\n")
	cfg.WriteString("  ping_interval: \"30s\"\n")
	cfg.WriteString("  read_timeout: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))

	return cfg.String()
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, w io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(w, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(w)
		if s := strings.TrimSpace(input); s != "" {
			return s
		}
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
