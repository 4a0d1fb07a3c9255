package website

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"time"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/auth"
	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/devs3"
	"git.coderun.dev/coderun/coderun/src/jobs"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/mockapi"
	"git.coderun.dev/coderun/coderun/src/perf"
	"git.coderun.dev/coderun/coderun/src/templates"
	"git.coderun.dev/coderun/coderun/src/utils"
	"git.coderun.dev/coderun/coderun/src/videostream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Requests kept for /debug/perf.
const perfHistory = 1000

var configPath string

var WebsiteCommand = &cobra.Command{
	Use:   "coderun",
	Short: "Run the CODE:RUN website",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := config.LoadOverlay(configPath); err != nil {
				return err
			}
		}
		logging.Configure(config.Config)
		crurl.SetGlobalBaseUrl(config.Config.BaseUrl)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Str("env", string(config.Config.Env)).Msg("Hello, CODE:RUN!")

		templates.Init()

		sealer, err := auth.NewSealer(config.Config.Auth.CookieSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("bad cookie secret")
		}
		if config.Config.Auth.CookieSecret == "" {
			logging.Warn().Msg("No cookie secret configured; sessions will not survive a restart")
		}

		ctx, cancelCtx := context.WithCancel(context.Background())
		defer cancelCtx()

		videos, err := videostream.New(ctx, config.Config.Video)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to set up video streaming")
		}

		apiClient := api.NewClient(config.Config.Api)
		perfCollector := perf.RunPerfCollector(ctx, perfHistory)

		var wg sync.WaitGroup

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			api.MonitorHealth(apiClient, config.Config.Api),
		}

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr: config.Config.Addr,
			Handler: NewWebsiteRoutes(&Deps{
				Api:           apiClient,
				Sealer:        sealer,
				Videos:        videos,
				PerfCollector: perfCollector,
			}),
		}
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the website")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// The private server carries metrics, pprof and recent request timings.
		// We don't bother to gracefully shut it down.
		go func() {
			logging.Info().Str("addr", config.Config.PrivateAddr).Msg("Serving private endpoints")
			err := http.ListenAndServe(config.Config.PrivateAddr, privateMux(perfCollector))
			logging.Error().Err(err).Msg("Private server shut down")
		}()

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down the website")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the website")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

func privateMux(perfCollector *perf.PerfCollector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/debug/perf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(perfCollector.GetPerfCopy()); err != nil {
			logging.Warn().Err(err).Msg("failed to write perf data")
		}
	})
	return mux
}

func init() {
	WebsiteCommand.PersistentFlags().StringVar(&configPath, "config", "", "YAML file overriding the built-in configuration")

	mockApiCommand := &cobra.Command{
		Use:   "mockapi [addr]",
		Short: "Run an in-memory stand-in for the platform API",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			addr := utils.OrDefault(arg(args, 0), ":8000")

			mock := mockapi.New()
			email, password := "dev@coderun.test", "password"
			mock.AddUser(email, password, "dev", true)
			logging.Info().Str("addr", addr).Str("email", email).Str("password", password).Msg("Serving the mock API")

			err := http.ListenAndServe(addr, mock)
			logging.Error().Err(err).Msg("Mock API shut down")
		},
	}
	WebsiteCommand.AddCommand(mockApiCommand)

	devS3Command := &cobra.Command{
		Use:   "devs3 [addr] [root]",
		Short: "Run a file-backed S3 stand-in for HLS playlists",
		Args:  cobra.MaximumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			addr := utils.OrDefault(arg(args, 0), ":9003")
			root := utils.OrDefault(arg(args, 1), "./tmp/s3")

			logging.Info().Str("addr", addr).Str("root", root).Msg("Serving local S3")
			err := http.ListenAndServe(addr, devs3.Handler(root))
			logging.Error().Err(err).Msg("Local S3 shut down")
		},
	}
	WebsiteCommand.AddCommand(devS3Command)

	checkApiCommand := &cobra.Command{
		Use:   "checkapi",
		Short: "Check that the configured platform API is reachable",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), config.Config.Api.Timeout)
			defer cancel()

			err := api.NewClient(config.Config.Api).Ping(ctx, config.Config.Api.HealthPath)
			if err != nil {
				logging.Error().Err(err).Str("base_url", config.Config.Api.BaseUrl).Msg("The API is not reachable")
				os.Exit(1)
			}
			logging.Info().Str("base_url", config.Config.Api.BaseUrl).Msg("The API is reachable")
		},
	}
	WebsiteCommand.AddCommand(checkApiCommand)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
