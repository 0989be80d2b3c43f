package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/cruxstack/email-reachability-go/internal/checker"
	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

var (
	dataPath   string
	policyPath string
	jsonOut    bool
)

func init() {
	flag.StringVar(&dataPath, "data", "", "path to JSON file with an array of addresses")
	flag.StringVar(&policyPath, "policy", "", "override path to Rego verdict policy file")
	flag.BoolVar(&jsonOut, "json", false, "print results as JSON")
	flag.Parse()
}

func NewDebugConfig() (*config.Config, error) {
	envpath := filepath.Join("..", "..", ".env")
	if _, err := os.Stat(envpath); err == nil {
		_ = godotenv.Load(envpath)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	cfg.DebugMode = true

	if policyPath != "" {
		cfg.VerdictPolicyPath = policyPath
	}

	if cfg.DebugDataPath == "" {
		cfg.DebugDataPath = filepath.Join("..", "..", "fixtures", "debug-data.json")
	}
	if dataPath != "" {
		cfg.DebugDataPath = dataPath
	}

	return cfg, nil
}

func loadEmails(cfg *config.Config) ([]string, error) {
	if flag.NArg() > 0 {
		return flag.Args(), nil
	}

	data, err := os.ReadFile(cfg.DebugDataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", cfg.DebugDataPath, err)
	}

	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return emails, nil
}

var (
	tagStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	colors   = map[types.Reachability]lipgloss.Color{
		types.Safe:    lipgloss.Color("#22c55e"),
		types.Risky:   lipgloss.Color("#eab308"),
		types.Invalid: lipgloss.Color("#ef4444"),
		types.Unknown: lipgloss.Color("#6b7280"),
	}
	dim = lipgloss.NewStyle().Faint(true)
)

func printItem(item checker.Item) {
	tag := tagStyle.Background(colors[item.Reachable]).Render(strings.ToUpper(string(item.Reachable)))
	fmt.Printf("%s %s\n", tag, item.Email)

	line := func(k, v string) { fmt.Printf("  %s %s\n", dim.Render(fmt.Sprintf("%-11s", k)), v) }

	line("syntax", fmt.Sprint(item.Syntax.Valid))
	mx := "none"
	if item.MX.Found {
		mx = strings.Join(item.MX.Records, ", ")
	}
	line("mx", mx)

	smtp := fmt.Sprintf("deliverable=%v", item.SMTP.Deliverable)
	if item.SMTP.ResponseCode != nil {
		smtp += fmt.Sprintf(" code=%d", *item.SMTP.ResponseCode)
	}
	if item.SMTP.Error != types.ErrNone {
		smtp += " error=" + string(item.SMTP.Error)
	}
	line("smtp", smtp)
	line("catch-all", fmt.Sprint(item.IsCatchAll))
	line("disposable", fmt.Sprint(item.IsDisposable))
	if item.Provider != "" {
		line("provider", string(item.Provider))
	}
	if item.Policy != nil {
		p := string(item.Policy.Action)
		if item.Policy.Reason != "" {
			p += " (" + item.Policy.Reason + ")"
		}
		line("policy", p)
	}
	fmt.Println()
}

func main() {
	cfg, err := NewDebugConfig()
	if err != nil {
		log.Fatal("failed to debug load config", "error", err)
	}
	cfg.InstallLogger()

	ctx := context.Background()

	c, err := checker.NewChecker(ctx, cfg, nil)
	if err != nil {
		log.Fatal("failed to init checker", "error", err)
	}

	emails, err := loadEmails(cfg)
	if err != nil {
		log.Fatal("failed to load addresses", "error", err)
	}

	items, err := c.CheckEmails(ctx, emails)
	if err != nil {
		log.Fatal("batch rejected", "error", err)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(checker.Response{Results: items}); err != nil {
			log.Fatal("failed to encode results", "error", err)
		}
		return
	}

	for _, item := range items {
		printItem(item)
	}
}
