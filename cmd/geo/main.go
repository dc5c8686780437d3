package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geo-workspace/internal/api"
	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/ingest"
	"github.com/joeblew999/geo-workspace/internal/server"
	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

// Options defines all CLI flags and env vars for the geo server.
// Flags: --host, --port, --data-dir, --store, --proj-service, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_STORE, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for workspace data" default:".data"`
	Store       string `doc:"Persistence backend: file, memory, duckdb or sqlite" default:"file"`
	ProjService string `doc:"Projection definition service URL; empty stays offline" default:"https://epsg.io"`
	ProjTimeout int    `doc:"Projection service timeout in seconds" default:"5"`
	ProjDefs    string `doc:"YAML file of extra projection definitions"`
	Distance    string `doc:"Measurement mode: geodesic or planar" default:"geodesic"`
	Verbose     bool   `doc:"Log diagnostic detail" short:"v"`
}

func (o *Options) config() server.Config {
	return server.Config{
		Host:        o.Host,
		Port:        fmt.Sprintf("%d", o.Port),
		DataDir:     o.DataDir,
		Store:       o.Store,
		ProjService: o.ProjService,
		ProjTimeout: time.Duration(o.ProjTimeout) * time.Second,
		ProjDefs:    o.ProjDefs,
		Distance:    o.Distance,
	}
}

func setupLogging(verbose bool) {
	var diag io.Writer
	if verbose {
		diag = os.Stderr
	}
	crs.SetLogWriters(os.Stderr, diag)
	service.SetLogWriters(os.Stderr, diag)
	workspace.SetLogWriters(os.Stderr, diag)
	ingest.SetLogWriters(os.Stderr, diag)
}

func newServer(opts *Options) *server.Server {
	setupLogging(opts.Verbose)
	srv, err := server.New(opts.config())
	if err != nil {
		log.Fatalf("Server setup: %v", err)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server

		hooks.OnStart(func() {
			srv = newServer(opts)
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geo-workspace API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s store)\n", opts.DataDir, opts.Store)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Events:  %s/api/v1/events\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
		hooks.OnStop(func() {
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "geo"
	cli.Root().Short = "Map workspace server with CRS-aware layers and measurements"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.Store = "memory"
			srv := newServer(opts)
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
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// resolve subcommand: one-shot CRS resolution of raster bounds
	resolveCmd := &cobra.Command{
		Use:   "resolve MINX,MINY,MAXX,MAXY",
		Short: "Resolve raster bounds to geographic coordinates",
		Long: "Resolve raster bounds given as easting/northing (or lon/lat) corners " +
			"and print the result as JSON. --crs names the declared system, e.g. EPSG:32636.",
		Args: cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			setupLogging(opts.Verbose)
			bound, err := parseBound(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			resolver, err := server.NewResolver(opts.config())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			declared, _ := cmd.Flags().GetString("crs")
			res := resolver.Resolve(context.Background(), bound, declared)

			out, _ := json.MarshalIndent(map[string]any{
				"bounds":     geomath.FromBound(res.Bounds),
				"method":     res.Method,
				"crs":        res.CRS,
				"wasGuessed": res.WasGuessed,
				"reason":     res.Reason,
			}, "", "  ")
			fmt.Println(string(out))
		}),
	}
	resolveCmd.Flags().String("crs", "", "Declared CRS identifier or proj4 definition")
	cli.Root().AddCommand(resolveCmd)

	cli.Run()
}

// parseBound reads "minX,minY,maxX,maxY".
func parseBound(s string) (orb.Bound, error) {
	var v [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("want 4 comma-separated numbers, got %q", s)
	}
	for i, p := range parts {
		if _, err := fmt.Sscan(strings.TrimSpace(p), &v[i]); err != nil {
			return orb.Bound{}, fmt.Errorf("bad number %q: %w", p, err)
		}
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
