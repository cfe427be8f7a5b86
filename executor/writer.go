package main

import (
	"context"
	"log"
	"time"

	"github.com/brensch/atlantis/persist"
	"github.com/brensch/atlantis/scraper/store"
)

type episodeWriteRequest struct {
	rows    []store.ArchiveFrameRow
	summary store.EpisodeRow
}

// summarySink receives episode summaries after each flush.
type summarySink interface {
	SaveBatch(ctx context.Context, eps []store.EpisodeRow) error
}

var _ summarySink = (*persist.EpisodeRepo)(nil)

// parquetWriterLoop streams archive rows into one batch file per
// episodesPerFlush episodes and writes the matching episode summaries next
// to it. The final partial batch is flushed when in closes.
func parquetWriterLoop(archiveDir, episodesDir string, episodesPerFlush int, sink summarySink, in <-chan episodeWriteRequest) {
	if episodesPerFlush <= 0 {
		episodesPerFlush = 50
	}

	var bw *store.BatchWriter[store.ArchiveFrameRow]
	summaries := make([]store.EpisodeRow, 0, episodesPerFlush)

	flush := func(reason string) {
		if bw == nil {
			return
		}
		outPath, rows, episodes, err := bw.Finalize()
		bw = nil
		if err != nil {
			log.Printf("Parquet %s flush failed (episodes=%d): %v", reason, len(summaries), err)
		} else if outPath != "" {
			log.Printf("Parquet %s flush ok: %s (episodes=%d rows=%d)", reason, outPath, episodes, rows)
		}

		if len(summaries) > 0 {
			if p, err := store.WriteBatchParquetAtomic(episodesDir, store.SchemaEpisode, summaries); err != nil {
				log.Printf("Episode summary flush failed: %v", err)
			} else {
				log.Printf("Episode summary flush ok: %s (episodes=%d)", p, len(summaries))
			}
			if sink != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := sink.SaveBatch(ctx, summaries); err != nil {
					log.Printf("Episode summary persist failed: %v", err)
				}
				cancel()
			}
		}
		summaries = summaries[:0]
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		if bw == nil {
			w, err := store.NewBatchWriter[store.ArchiveFrameRow](archiveDir, store.SchemaArchive)
			if err != nil {
				log.Printf("Parquet writer open failed, dropping episode %s: %v", req.summary.EpisodeID, err)
				continue
			}
			bw = w
		}
		if err := bw.WriteEpisode(req.rows); err != nil {
			log.Printf("Parquet write failed for episode %s: %v", req.summary.EpisodeID, err)
			continue
		}
		summaries = append(summaries, req.summary)

		if bw.BufferedEpisodes() >= episodesPerFlush {
			flush("count")
		}
	}
	flush("final")
}
