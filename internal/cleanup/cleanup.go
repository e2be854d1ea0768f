package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Start schedules periodic removal of stale audit temp data: run
// directories a request left behind and Chromium profile directories
// Lighthouse's browser fails to clean up after crashes.
func Start(maxAge time.Duration) {
	log.Printf("Temp file cleanup scheduled every %v", maxAge)
	sweep(maxAge)

	ticker := time.NewTicker(maxAge)
	go func() {
		for range ticker.C {
			sweep(maxAge)
		}
	}()
}

func sweep(maxAge time.Duration) {
	tmpDir := os.TempDir()
	now := time.Now()

	removeStale(filepath.Join(tmpDir, "lighthouse-compare"), "", now, maxAge)
	removeStale(tmpDir, ".org.chromium.Chromium.", now, maxAge)
}

func removeStale(dir, prefix string, now time.Time, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if prefix != "" && !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}

		fullPath := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(fullPath); err != nil {
			log.Printf("Failed to clean up %s: %v", fullPath, err)
		} else {
			log.Printf("Cleaned up stale audit directory (%dmin old): %s", int(age.Minutes()), fullPath)
		}
	}
}
