package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-story/internal/logging"
	"github.com/joeblew999/plat-story/internal/mapbox"
	"github.com/joeblew999/plat-story/internal/mapconfig"
	"github.com/joeblew999/plat-story/internal/protomaps"
	"github.com/joeblew999/plat-story/internal/server"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/stylecache"
	"github.com/joeblew999/plat-story/internal/styleresource"
	"github.com/joeblew999/plat-story/internal/version"
)

// Options defines all CLI flags and env vars for the story server.
// Flags: --host, --port, --data-dir, --public-url, --pm-api-key, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_PUBLIC_URL, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for communities, tiles and the database" default:".data"`
	PublicURL   string `doc:"Base URL clients use to reach this server (defaults to http://host:port)"`
	PMApiKey    string `doc:"Protomaps API key for hosted fallback tiles"`
	LocalTiles  string `doc:"PMTiles archive in <data-dir>/tiles served as the local basemap, without extension"`
	Communities string `doc:"YAML file of communities to seed on startup"`
	LogLevel    string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogDev      bool   `doc:"Human-readable console logs"`
	FetchRPS    int    `doc:"Maximum external style fetches per second, 0 for unlimited" default:"5"`
}

func serverConfig(opts *Options, noDB bool) server.Config {
	return server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		DataDir:     opts.DataDir,
		PublicURL:   opts.PublicURL,
		PMApiKey:    opts.PMApiKey,
		LocalTiles:  opts.LocalTiles,
		Communities: opts.Communities,
		FetchRPS:    float64(opts.FetchRPS),
		NoDB:        noDB,
	}
}

func newLogger(opts *Options) *zap.Logger {
	log, err := logging.New(opts.LogLevel, opts.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return log
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := newLogger(opts)
		srv := server.New(serverConfig(opts, false), log)
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info("plat-story API server starting",
				zap.String("addr", httpServer.Addr),
				zap.String("data_dir", opts.DataDir),
				zap.String("docs", baseURL+"/docs"),
				zap.String("openapi", baseURL+"/openapi.json"),
				zap.String("version", version.Version))

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				log.Warn("shutdown", zap.Error(err))
			}
			if err := srv.Close(); err != nil {
				log.Warn("close", zap.Error(err))
			}
			log.Sync()
		})
	})

	cli.Root().Use = "story"
	cli.Root().Short = "Map style resolution for community map views"
	cli.Root().Version = version.Get().String()

	cli.Root().AddCommand(specCommand())
	cli.Root().AddCommand(resolveCommand())
	cli.Root().AddCommand(warmCommand())

	cli.Run()
}

// spec subcommand: export OpenAPI spec
func specCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := server.New(serverConfig(opts, true), zap.NewNop())
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// resolve subcommand: resolve one map configuration file offline
func resolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <mapconfig.yaml>",
		Short: "Resolve a map configuration file and print the style decision as JSON",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			var raw mapconfig.MapConfig
			if err := yaml.Unmarshal(data, &raw); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", args[0], err)
				os.Exit(1)
			}
			cfg := mapconfig.Normalize(&raw)
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid map config: %v\n", err)
				os.Exit(1)
			}

			builder := protomaps.Builder{APIKey: opts.PMApiKey}
			resolved := mapconfig.Resolve(cfg, builder)

			var out any = resolved
			if fetch, _ := cmd.Flags().GetBool("fetch"); fetch {
				timeout, _ := cmd.Flags().GetDuration("timeout")
				log := newLogger(opts)
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				snap, err := fetchSnapshot(ctx, timeout, float64(opts.FetchRPS), log, builder, resolved, cfg)
				log.Sync()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Style not ready: %v\n", err)
					os.Exit(1)
				}
				out = snap
			}

			output, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling result: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	cmd.Flags().Bool("fetch", false, "Fetch and translate external styles, printing the final style snapshot")
	cmd.Flags().Duration("timeout", 30*time.Second, "Fetch timeout")
	return cmd
}

// fetchGrace bounds how long after the client timeout fetchSnapshot still
// waits for the resource to settle on its fallback.
const fetchGrace = 5 * time.Second

// fetchSnapshot runs one style resource to a ready state. The fetch is
// bounded by the client timeout only, so a slow style still settles on the
// fallback instead of being dropped.
func fetchSnapshot(ctx context.Context, timeout time.Duration, rps float64, log *zap.Logger, builder protomaps.Builder, resolved mapconfig.Resolved, cfg mapconfig.Normalized) (styleresource.Snapshot, error) {
	res := styleresource.New(styleresource.Deps{
		Cache:    stylecache.New(),
		Preparer: mapbox.NewFetcher(&http.Client{Timeout: timeout}, rps),
		Fallback: builder,
		Logger:   log,
	}, "cli")
	defer res.Close()

	waitCtx, cancel := context.WithTimeout(ctx, timeout+fetchGrace)
	defer cancel()
	res.Update(context.WithoutCancel(ctx), resolved, cfg)
	state, err := res.Wait(waitCtx)
	if err != nil {
		return styleresource.Snapshot{}, err
	}
	return state.Snapshot(), nil
}

// warm subcommand: pre-fetch every community's external style
func warmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Fetch the external style of every community and report failures",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := newLogger(opts)
			defer log.Sync()

			srv := server.New(serverConfig(opts, true), log)
			defer srv.Close()
			svc := srv.Services()

			total := 0
			for _, c := range svc.Communities.List() {
				if svc.Styles.Resolve(c.Normalized()).IsMapboxStyle {
					total++
				}
			}
			if total == 0 {
				fmt.Println("No communities use external styles.")
				return
			}

			concurrency, _ := cmd.Flags().GetInt("concurrency")
			bar := progressbar.NewOptions(total,
				progressbar.OptionSetDescription("warming styles"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionThrottle(100*time.Millisecond),
			)

			var failed []service.WarmResult
			err := svc.Styles.Warm(context.Background(), concurrency, func(r service.WarmResult) {
				bar.Add(1)
				if r.Err != nil {
					failed = append(failed, r)
				}
			})
			bar.Finish()
			fmt.Println()

			for _, r := range failed {
				fmt.Printf("  %s: %s: %v\n", r.CommunityID, mapbox.RedactToken(r.Locator), r.Err)
			}
			fmt.Printf("Warmed %d of %d external styles.\n", total-len(failed), total)
			if err != nil {
				os.Exit(1)
			}
		}),
	}
	cmd.Flags().IntP("concurrency", "c", 4, "Maximum concurrent fetches")
	return cmd
}
