package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/golang/glog"
	_ "github.com/lib/pq"
	"github.com/litespace/compositor/api"
	"github.com/litespace/compositor/artifact"
	"github.com/litespace/compositor/chunks"
	"github.com/litespace/compositor/clients"
	"github.com/litespace/compositor/config"
	"github.com/litespace/compositor/handlers"
	"github.com/litespace/compositor/layout"
	"github.com/litespace/compositor/pipeline"
	"github.com/litespace/compositor/transcode"
	"github.com/litespace/compositor/video"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := flag.Set("logtostderr", "true")
	if err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("compositor", flag.ExitOnError)
	cli := config.Cli{}

	version, verbosity := registerFlags(fs, &cli)

	err = ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("COMPOSITOR"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}
	err = flag.CommandLine.Parse(nil)
	if err != nil {
		glog.Fatal(err)
	}

	if *version {
		fmt.Printf("compositor version: %s", config.Version)
		return
	}

	if *verbosity != "" {
		err = vFlag.Value.Set(*verbosity)
		if err != nil {
			glog.Fatal(err)
		}
	}

	if cli.APIToken == "" {
		glog.Warning("-api-token is not set, the API accepts unauthenticated requests")
	}

	// Record composition statuses in a Postgres database if configured
	var statusStore clients.StatusStore = clients.NoopStatusStore{}
	if cli.StatusDBConnectionString != "" {
		statusDB, err := sql.Open("postgres", cli.StatusDBConnectionString)
		if err != nil {
			glog.Fatalf("Error creating postgres status connection: %v", err)
		}

		// Without this, we've run into issues with exceeding our open connection limit
		statusDB.SetMaxOpenConns(2)
		statusDB.SetMaxIdleConns(2)
		statusDB.SetConnMaxLifetime(time.Hour)
		defer statusDB.Close()

		store := clients.NewPostgresStatusStore(statusDB)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = store.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			glog.Fatalf("Error creating composition status table: %v", err)
		}
		statusStore = store
	} else {
		glog.Info("Postgres status connection string was not set, composition statuses are only kept in memory.")
	}

	chunkStore, err := chunks.NewStore(cli.StorageDir, cli.ChunkExt)
	if err != nil {
		glog.Fatalf("Error creating chunk store: %v", err)
	}

	encoder := transcode.Encoder{
		VideoCodec: cli.VideoCodec,
		AudioCodec: cli.AudioCodec,
		Preset:     cli.Preset,
		CRF:        cli.CRF,
		FPS:        cli.FPS,
	}
	renderQueue := pipeline.NewRenderQueue(
		transcode.NewRenderer(cli.FFmpegPath, encoder, cli.RenderTimeout),
		cli.MaxConcurrentRenders,
		cli.RenderQueueSize,
	).Start()

	composer := &pipeline.Composer{
		Resolver:     artifact.NewResolver(chunkStore.Root()),
		Prober:       video.NewProbe(cli.FFprobePath, cli.ProbeTimeout, cli.ProbeRetries),
		Planner:      layout.NewPlanner(cli.CanvasWidth, cli.CanvasHeight),
		Renderer:     renderQueue,
		OutputDir:    cli.OutputDir,
		ProbeWorkers: cli.ProbeWorkers,
	}

	var poster pipeline.PosterFunc
	if cli.Poster {
		poster = func(ctx context.Context, input, output string, atSeconds float64) error {
			return video.GeneratePoster(ctx, cli.FFmpegPath, input, output, atSeconds)
		}
	}

	headers := map[string]string{}
	if cli.APIToken != "" {
		headers["Authorization"] = fmt.Sprintf("Bearer %s", cli.APIToken)
	}
	coordinator := pipeline.NewCoordinator(pipeline.CoordinatorOpts{
		Composer:       composer,
		StatusClient:   clients.NewCallbackClient(headers),
		StatusStore:    statusStore,
		Purger:         chunkStore,
		PurgeArtifacts: cli.PurgeArtifacts,
		Poster:         poster,
	})

	compositorHandlers := &handlers.CompositorHandlersCollection{
		Chunks:      chunkStore,
		Coordinator: coordinator,
	}

	// Initialize root context; cancelling this prompts all components to shut down cleanly
	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, compositorHandlers)
	})

	group.Go(func() error {
		return api.ListenAndServeInternal(ctx, cli, compositorHandlers)
	})

	group.Go(func() error {
		<-ctx.Done()
		// in-flight compositions are failed and reported before the workers go away
		coordinator.Stop()
		renderQueue.Stop()
		return nil
	})

	err = group.Wait()
	glog.Infof("Shutdown complete. Reason for shutdown: %s", err)
}

// registerFlags defines every command line flag on fs, storing the values in cli
func registerFlags(fs *flag.FlagSet, cli *config.Cli) (version *bool, verbosity *string) {
	version = fs.Bool("version", false, "print application version")

	// listen addresses
	config.AddrFlag(fs, &cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "Address to bind for external-facing HTTP handling")
	config.AddrFlag(fs, &cli.HTTPInternalAddress, "http-internal-addr", "127.0.0.1:7979", "Address to bind for metrics, healthchecks and profiling")
	fs.StringVar(&cli.APIToken, "api-token", "", "Bearer token required on API requests. Empty disables auth")

	// storage
	fs.StringVar(&cli.StorageDir, "storage-dir", "recordings", "Directory uploaded chunks are appended into")
	fs.StringVar(&cli.OutputDir, "output-dir", "compositions", "Directory composed sessions are written to")
	fs.StringVar(&cli.ChunkExt, "chunk-ext", "webm", "File extension of recorded artifacts")
	fs.BoolVar(&cli.PurgeArtifacts, "purge-artifacts", false, "Delete the artifacts of a session once it was composed successfully")
	fs.BoolVar(&cli.Poster, "poster", false, "Extract a poster frame next to every composed output")
	fs.StringVar(&cli.StatusDBConnectionString, "status-db-connection-string", "", "Connection string of the Postgres DB composition statuses are recorded in. Takes the form: host=X port=X user=X password=X dbname=X")

	// composition
	config.ResolutionFlag(fs, &cli.CanvasWidth, &cli.CanvasHeight, "canvas", fmt.Sprintf("%dx%d", config.DefaultCanvasWidth, config.DefaultCanvasHeight), "Resolution of the composed output, WIDTHxHEIGHT")
	fs.StringVar(&cli.FFmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	fs.StringVar(&cli.FFprobePath, "ffprobe", "ffprobe", "Path to the ffprobe binary")
	fs.StringVar(&cli.VideoCodec, "video-codec", transcode.DefaultEncoder.VideoCodec, "Video encoder of the composed output")
	fs.StringVar(&cli.AudioCodec, "audio-codec", transcode.DefaultEncoder.AudioCodec, "Audio encoder of the composed output")
	fs.StringVar(&cli.Preset, "preset", transcode.DefaultEncoder.Preset, "Encoder preset")
	fs.IntVar(&cli.CRF, "crf", transcode.DefaultEncoder.CRF, "Encoder constant rate factor")
	fs.IntVar(&cli.FPS, "fps", transcode.DefaultEncoder.FPS, "Frame rate of the composed output")
	fs.IntVar(&cli.ProbeWorkers, "probe-workers", runtime.NumCPU(), "Number of artifacts probed in parallel")
	fs.Uint64Var(&cli.ProbeRetries, "probe-retries", 2, "Retries of a failed probe. Timeouts are never retried")
	fs.DurationVar(&cli.ProbeTimeout, "probe-timeout", config.DefaultProbeTimeout, "Time limit for probing a single artifact")
	fs.DurationVar(&cli.RenderTimeout, "render-timeout", config.DefaultRenderTimeout, "Time limit for rendering a single session")
	fs.IntVar(&cli.MaxConcurrentRenders, "max-concurrent-renders", 2, "Number of sessions rendered at the same time, others wait in order")
	fs.IntVar(&cli.RenderQueueSize, "render-queue-size", 100, "Renders that can wait for a free slot before callers block")

	// special parameters
	verbosity = fs.String("v", "", "Log verbosity.  {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	return version, verbosity
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
