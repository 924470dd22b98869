package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"gmatbot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your gmatbot installation",
		Long: `Verifies that gmatbot's configuration, tokens, question corpus, browser
and journal database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("gmatbot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'gmatbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Platform token
			switch cfg.Channels.Platform {
			case "zalo":
				if cfg.Channels.Zalo.Token == "" {
					printFail("Zalo token", "channels.zalo.token is empty")
					failed++
				} else {
					printPass("Zalo token", "configured")
					passed++
				}
			case "telegram":
				if cfg.Channels.Telegram.Token == "" {
					printFail("Telegram token", "channels.telegram.token is empty")
					failed++
				} else {
					printPass("Telegram token", "configured")
					passed++
				}
			}

			// 4. Publish settings
			if cfg.Publish.Repo == "" {
				printFail("Publish repo", "publish.repo is empty")
				failed++
			} else if cfg.Publish.Token == "" {
				printWarn("Publish token", "publish.token is empty, uploads will be rejected")
				warned++
			} else {
				printPass("Publish", fmt.Sprintf("%s @ %s", cfg.Publish.Repo, cfg.Publish.ReleaseTag))
				passed++
			}

			// 5. Corpus reachable
			if err := checkCorpus(cfg.Corpus.BaseURL); err != nil {
				printWarn("Corpus", fmt.Sprintf("%s: %v", cfg.Corpus.BaseURL, err))
				warned++
			} else {
				printPass("Corpus", cfg.Corpus.BaseURL)
				passed++
			}

			// 6. Chrome available for rendering
			if path, err := findChrome(); err != nil {
				printFail("Chrome", "no Chrome or Chromium binary found in PATH")
				failed++
			} else {
				printPass("Chrome", path)
				passed++
			}

			// 7. Journal database writable
			if cfg.Journal.Enabled {
				if err := checkDatabase(cfg.Journal.DBPath); err != nil {
					printFail("Journal", err.Error())
					failed++
				} else {
					printPass("Journal", cfg.Journal.DBPath)
					passed++
				}
			}

			// 8. Metrics port free
			if cfg.Metrics.Enabled {
				if err := checkPort(cfg.Metrics.Port); err != nil {
					printWarn("Metrics port", fmt.Sprintf("port %d may be in use: %v", cfg.Metrics.Port, err))
					warned++
				} else {
					printPass("Metrics port", fmt.Sprintf(":%d available", cfg.Metrics.Port))
					passed++
				}
			}

			// 9. Alias file parses
			if cfg.Categories.AliasFile != "" {
				if _, err := os.Stat(cfg.Categories.AliasFile); err != nil {
					printWarn("Alias file", fmt.Sprintf("not found: %s", cfg.Categories.AliasFile))
					warned++
				} else {
					printPass("Alias file", cfg.Categories.AliasFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running gmatbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ngmatbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! gmatbot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkCorpus(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/index.json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func findChrome() (string, error) {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("not found")
}

func checkDatabase(dbPath string) error {
	dir := dbPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' || dir[i] == '\\' {
			dir = dir[:i]
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
