package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// target is one listing query replayed against both portals.
type target struct {
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	LegacyUUIDs    []string
	GoUUIDs        []string
	OrderMatch     bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

// Compares the uuids, in order, that the Go catalog and the legacy portal
// resolve for the same file listing queries.
func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:3000", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3001", "Legacy portal base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, goBase, legacyBase, t)
		diff := comp.Error != nil || !comp.StatusMatch || !comp.OrderMatch
		switch {
		case diff && t.Critical:
			breaking++
		case diff:
			optionalDiff++
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase string, tgt target) comparison {
	comp := comparison{Target: tgt}

	goStatus, goBody, goDur, err := fetch(client, goBase, tgt.Path)
	if err != nil {
		comp.Error = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(client, legacyBase, tgt.Path)
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}
	comp.GoStatus, comp.LegacyStatus = goStatus, legacyStatus
	comp.DurationGo, comp.DurationLegacy = goDur, legacyDur
	comp.StatusMatch = goStatus == legacyStatus
	if goStatus != http.StatusOK || legacyStatus != http.StatusOK {
		comp.OrderMatch = comp.StatusMatch
		return comp
	}

	if comp.GoUUIDs, err = extractUUIDs(goBody); err != nil {
		comp.Error = fmt.Errorf("decode go body: %w", err)
		return comp
	}
	if comp.LegacyUUIDs, err = extractUUIDs(legacyBody); err != nil {
		comp.Error = fmt.Errorf("decode legacy body: %w", err)
		return comp
	}
	comp.OrderMatch = equalOrder(comp.GoUUIDs, comp.LegacyUUIDs)
	return comp
}

func fetch(client *http.Client, base, path string) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	start := time.Now()
	resp, err := client.Get(strings.TrimRight(base, "/") + path)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// extractUUIDs accepts both the enveloped Go listing and the bare legacy array.
func extractUUIDs(body []byte) ([]string, error) {
	type file struct {
		UUID string `json:"uuid"`
	}
	var envelope struct {
		Data []file `json:"data"`
	}
	var files []file
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		files = envelope.Data
	} else if err := json.Unmarshal(body, &files); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, strings.ToLower(f.UUID))
	}
	return out, nil
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func printReport(results []comparison) {
	fmt.Println("Best Version Parity Report")
	fmt.Println("==========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.OrderMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] GET %s\n", status, res.Target.Path)
		fmt.Printf("  Go: %d, %d files (%s)\n", res.GoStatus, len(res.GoUUIDs), res.DurationGo)
		fmt.Printf("  Legacy: %d, %d files (%s)\n", res.LegacyStatus, len(res.LegacyUUIDs), res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Order match: %t | Critical: %t\n", res.StatusMatch, res.OrderMatch, res.Target.Critical)
		}
	}
}
