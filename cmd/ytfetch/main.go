package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/catalog"
	"github.com/famomatic/ytfetch/internal/config"
	"github.com/famomatic/ytfetch/internal/logging"
	"github.com/famomatic/ytfetch/internal/transfer"
)

func main() {
	// .env is optional; system env wins either way.
	_ = config.Load()

	var (
		input       = flag.String("v", "", "Video ID or watch URL")
		selector    = flag.String("f", "best", "Stream selector: best, bestaudio, bestvideo, muxed, itag:N")
		output      = flag.String("o", "", "Output file path (default: <video id>.<container>)")
		listOnly    = flag.Bool("list", false, "List streams without downloading")
		metricsAddr = flag.String("metrics", "", "Expose Prometheus metrics on this address (e.g. :9090)")
		logLevel    = flag.String("log-level", config.GetEnv("YTFETCH_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", config.GetEnv("YTFETCH_LOG_FORMAT", "text"), "Log format: text, json")
	)
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: ytfetch -v <video id or url> [-f selector] [-o path] [-list]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := logging.New(*logLevel, *logFormat)

	cfg := client.FromEnv()
	cfg.Logger = log

	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		cfg.MetricsRegistry = registry
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics listener failed", "addr", *metricsAddr, "err", err)
			}
		}()
	}

	c, err := client.New(cfg)
	if err != nil {
		log.Error("client setup failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	video, cat, err := c.Streams(ctx, *input)
	if err != nil {
		log.Error("stream resolution failed", "input", *input, "err", err)
		os.Exit(1)
	}

	fmt.Printf("%s — %s (%ds)\n", video.Title, video.Author, video.DurationSec)

	if *listOnly {
		for _, s := range append(append(cat.Muxed(), cat.VideoOnly()...), cat.AudioOnly()...) {
			label := s.QualityLabel
			if label == "" {
				label = s.AudioQuality
			}
			fmt.Printf("[%d] %s %s %d kbps%s\n",
				s.Itag, s.Container, label, s.EffectiveBitrate()/1000, trackSuffix(&s))
		}
		for _, serr := range cat.Errors {
			fmt.Printf("[%d] unresolved: %v\n", serr.Itag, serr.Err)
		}
		return
	}

	stream, err := cat.Select(*selector)
	if err != nil {
		log.Error("stream selection failed", "selector", *selector, "err", err)
		os.Exit(1)
	}

	path := *output
	if path == "" {
		ext := stream.Container
		if ext == "" {
			ext = "bin"
		}
		path = video.ID + "." + ext
	}

	fmt.Printf("Fetching itag %d to %s\n", stream.Itag, path)
	session, err := c.Download(ctx, stream, path, client.TransferOptions{
		Progress: printProgress,
	})
	fmt.Println()
	if err != nil {
		if session != nil && session.State() == transfer.StateCancelled {
			log.Warn("download cancelled", "path", path+".part")
			os.Exit(130)
		}
		log.Error("download failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Done: %s (%d bytes)\n", path, session.Progress().BytesWritten)
}

func trackSuffix(s *catalog.ResolvedStream) string {
	switch {
	case s.IsMuxed():
		return ""
	case s.HasVideo:
		return " (video only)"
	case s.HasAudio:
		return " (audio only)"
	default:
		return ""
	}
}

func printProgress(p transfer.Progress) {
	if p.Total > 0 {
		fmt.Printf("\r%d/%d bytes (%.1f%%)", p.BytesWritten, p.Total,
			float64(p.BytesWritten)/float64(p.Total)*100)
		return
	}
	fmt.Printf("\r%d bytes", p.BytesWritten)
}
