package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show toolrelay status",
	RunE:  runStatus,
}

type healthReport struct {
	Status  string `json:"status"`
	Peers   int    `json:"peers"`
	Tools   int    `json:"tools"`
	Running int    `json:"running"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	fmt.Printf("%s toolrelay Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	store := "(memory only)"
	if cfg.Store.DSN != "" {
		store = cfg.Store.DSN
	}
	fmt.Printf("Endpoint: %s\n", endpoint(cfg))
	fmt.Printf("Store:    %s\n\n", store)

	url := fmt.Sprintf("http://%s:%d/healthz", cfg.Gateway.Host, cfg.Gateway.Port)
	hc := &http.Client{Timeout: 3 * time.Second}
	resp, err := hc.Get(url)
	if err != nil {
		fmt.Println("Gateway:  ✗ not running")
		return nil
	}
	defer resp.Body.Close()

	var h healthReport
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	fmt.Printf("Gateway:  ✓ %s\n", h.Status)
	fmt.Printf("  Peers:   %d\n", h.Peers)
	fmt.Printf("  Tools:   %d\n", h.Tools)
	fmt.Printf("  Running: %d\n", h.Running)
	return nil
}
