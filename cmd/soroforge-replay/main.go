package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

func main() {
	fixtureDir := flag.String("fixture-dir", "./fixtures", "Directory of event fixture files to watch")
	serverURL := flag.String("server", "http://localhost:8080", "SoroForge API base URL")
	ingestToken := flag.String("token", os.Getenv("SOROFORGE_INGEST_TOKEN"), "Bearer token for the ingest endpoint")
	delaySeconds := flag.Int("delay", 2, "Delay in seconds before replaying a changed fixture")
	replayExisting := flag.Bool("replay-existing", false, "Replay all fixtures present at startup")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(*fixtureDir, 0755); err != nil {
		logrus.Fatalf("Failed to create fixture directory: %v", err)
	}

	// Create watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logrus.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	if err := setupWatcher(watcher, *fixtureDir); err != nil {
		logrus.Fatalf("Failed to watch fixture directory: %v", err)
	}

	replayer := NewReplayer(*serverURL, *ingestToken, time.Duration(*delaySeconds)*time.Second)
	replayer.Start()
	defer replayer.Stop()

	if *replayExisting {
		scanExistingFixtures(*fixtureDir, replayer)
	}

	logrus.Infof("Watching %s for event fixtures, replaying against %s", *fixtureDir, *serverURL)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Only write and create events for fixture files matter
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isFixture(event.Name) {
				logrus.Debugf("Fixture changed: %s", event.Name)
				replayer.Queue(event.Name)
			}

			// Also watch new directories
			if event.Op&fsnotify.Create != 0 {
				fi, err := os.Stat(event.Name)
				if err == nil && fi.IsDir() {
					logrus.Debugf("New directory: %s", event.Name)
					if err := watcher.Add(event.Name); err != nil {
						logrus.Warnf("Error watching new directory: %v", err)
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Watcher error: %v", err)
		}
	}
}

func isFixture(path string) bool {
	return filepath.Ext(path) == ".json"
}

// setupWatcher recursively adds all directories to the watcher
func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// scanExistingFixtures queues every fixture already present in the
// directory, oldest first so replayed histories stay ordered
func scanExistingFixtures(root string, replayer *Replayer) {
	type fixture struct {
		path    string
		modTime time.Time
	}
	var found []fixture

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isFixture(path) {
			found = append(found, fixture{path: path, modTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		logrus.Warnf("Error scanning fixtures: %v", err)
		return
	}

	for i := 0; i < len(found); i++ {
		for j := i + 1; j < len(found); j++ {
			if found[j].modTime.Before(found[i].modTime) {
				found[i], found[j] = found[j], found[i]
			}
		}
	}

	logrus.Infof("Queueing %d existing fixtures", len(found))
	for _, f := range found {
		replayer.Queue(f.path)
	}
}
