// Command sonora is the library's CLI front-end: a single binary with
// verb flags for ingesting, querying, listing, and managing tracks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/audio"
	"github.com/media-luna/sonora/internal/audio/live"
	"github.com/media-luna/sonora/internal/engine"
	"github.com/media-luna/sonora/internal/query"
	"github.com/media-luna/sonora/utils/logger"
)

func main() {
	ingestFile := flag.String("ingest", "", "Path to an audio file to ingest")
	artist := flag.String("artist", "", "Artist name (used with -ingest)")
	title := flag.String("title", "", "Track title (used with -ingest)")
	queryFile := flag.String("query", "", "Path to an audio file to find similar tracks for")
	threshold := flag.Int("threshold", -1, "Minimum shared LSH bands to keep a candidate (default: config's threshold_tables)")
	searchAll := flag.Bool("search-all", false, "Bypass LSH lookup and compare against every stored fingerprint")
	listCmd := flag.Bool("list", false, "List all tracks in the database")
	cleanupCmd := flag.Bool("cleanup", false, "Remove duplicate tracks sharing a file-content hash")
	deleteID := flag.Int64("delete", -1, "Delete a track by its ID")
	resetCmd := flag.Bool("reset", false, "Reset the database, removing every track")
	listenCmd := flag.Bool("listen", false, "Listen on the default microphone and find similar tracks for the captured audio")
	listenSeconds := flag.Int("listen-seconds", 5, "Seconds of microphone audio to capture before matching (used with -listen)")
	configPath := flag.String("config", "", "Path to config.yaml (default: ./configs/config.yaml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		dir, _ := os.Getwd()
		path = filepath.Join(dir, "configs", "config.yaml")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error(fmt.Errorf("failed to load configuration: %v", err))
		os.Exit(1)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		logger.Error(fmt.Errorf("failed to initialize engine: %v", err))
		os.Exit(1)
	}
	defer eng.Close()

	ctx := context.Background()

	switch {
	case *resetCmd:
		if err := eng.ResetDatabase(ctx); err != nil {
			logger.Error(fmt.Errorf("error resetting database: %v", err))
			os.Exit(1)
		}
		logger.Info("database reset")

	case *deleteID >= 0:
		if err := eng.DeleteTrack(ctx, *deleteID); err != nil {
			logger.Error(fmt.Errorf("error deleting track: %v", err))
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("deleted track %d", *deleteID))

	case *cleanupCmd:
		removed, err := eng.CleanupDuplicates(ctx)
		if err != nil {
			logger.Error(fmt.Errorf("error cleaning up duplicates: %v", err))
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("removed %d duplicate tracks", removed))

	case *listCmd:
		tracks, err := eng.ListTracks(ctx, nil)
		if err != nil {
			logger.Error(fmt.Errorf("error listing tracks: %v", err))
			os.Exit(1)
		}
		if len(tracks) == 0 {
			logger.Info("no tracks found in the database")
			return
		}
		for _, t := range tracks {
			fmt.Printf("ID: %d | Title: %s | Artist: %s | Path: %s\n", t.ID, t.Title, t.Artist, t.Path)
		}

	case *queryFile != "":
		th := *threshold
		if th < 0 {
			th = cfg.LSH.ThresholdTables
		}
		matches, err := eng.FindSimilarFromFile(ctx, *queryFile, engine.FindSimilarOptions{
			Threshold:              th,
			SearchAll:              *searchAll,
			OptimizeSignatureCount: true,
		})
		if err != nil {
			logger.Error(fmt.Errorf("error querying: %v", err))
			os.Exit(1)
		}
		if len(matches) == 0 {
			logger.Info("no similar tracks found")
			return
		}
		for i, m := range matches {
			fmt.Printf("%d. %s by %s (similarity %.3f, minHamming %d, ordering %.4f)\n",
				i+1, m.Track.Title, m.Track.Artist, m.Stats.MaxSimilarity, m.Stats.MinHammingDistance, m.Stats.OrderingValue)
		}

	case *ingestFile != "":
		id, err := eng.IngestFile(ctx, *ingestFile, *artist, *title, nil)
		if err != nil {
			logger.Error(fmt.Errorf("error ingesting file: %v", err))
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("ingested track %d from %s", id, *ingestFile))

	case *listenCmd:
		th := *threshold
		if th < 0 {
			th = cfg.LSH.ThresholdTables
		}
		matches, err := listenAndFindSimilar(ctx, eng, cfg, *listenSeconds, th, *searchAll)
		if err != nil {
			logger.Error(fmt.Errorf("error listening: %v", err))
			os.Exit(1)
		}
		if len(matches) == 0 {
			logger.Info("no similar tracks found")
			return
		}
		for i, m := range matches {
			fmt.Printf("%d. %s by %s (similarity %.3f, minHamming %d, ordering %.4f)\n",
				i+1, m.Track.Title, m.Track.Artist, m.Stats.MaxSimilarity, m.Stats.MinHammingDistance, m.Stats.OrderingValue)
		}

	default:
		logger.Error(fmt.Errorf("please provide -ingest, -query, -listen, -list, -delete, -cleanup, or -reset"))
		flag.Usage()
		os.Exit(1)
	}
}

// listenAndFindSimilar records listenSeconds of microphone audio,
// resamples it from the recorder's native rate to the rate the
// fingerprinting pipeline expects, and matches it against the store.
func listenAndFindSimilar(ctx context.Context, eng *engine.Engine, cfg *config.Config, listenSeconds, threshold int, searchAll bool) ([]query.Match, error) {
	rec, err := live.NewRecorder()
	if err != nil {
		return nil, fmt.Errorf("initializing recorder: %w", err)
	}
	defer rec.Close()

	if err := rec.Start(); err != nil {
		return nil, fmt.Errorf("starting recorder: %w", err)
	}

	logger.Info(fmt.Sprintf("listening for %ds...", listenSeconds))
	time.Sleep(time.Duration(listenSeconds) * time.Second)

	if err := rec.Stop(); err != nil {
		return nil, fmt.Errorf("stopping recorder: %w", err)
	}

	pcm := rec.Window(listenSeconds)
	if len(pcm) == 0 {
		return nil, nil
	}
	pcm = audio.Resample(pcm, rec.SampleRate(), cfg.Fingerprint.SampleRate)

	return eng.FindSimilarFromSamples(ctx, pcm, engine.FindSimilarOptions{
		Threshold:              threshold,
		SearchAll:              searchAll,
		OptimizeSignatureCount: true,
	})
}
