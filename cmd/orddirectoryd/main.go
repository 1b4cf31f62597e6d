// Command orddirectoryd serves Open Resource Discovery documents out of a
// local directory or a synchronized GitHub repository, per spec.md.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/hcl/v2"
	"github.com/alecthomas/kong"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/sap/ord-directory-server/internal/apierror"
	"github.com/sap/ord-directory-server/internal/authcheck"
	"github.com/sap/ord-directory-server/internal/cachewarm"
	"github.com/sap/ord-directory-server/internal/config"
	"github.com/sap/ord-directory-server/internal/fingerprint"
	"github.com/sap/ord-directory-server/internal/gitfetch"
	"github.com/sap/ord-directory-server/internal/githubauth"
	"github.com/sap/ord-directory-server/internal/httputil"
	"github.com/sap/ord-directory-server/internal/logging"
	"github.com/sap/ord-directory-server/internal/metrics"
	"github.com/sap/ord-directory-server/internal/ordcache"
	"github.com/sap/ord-directory-server/internal/ordconfig"
	"github.com/sap/ord-directory-server/internal/orddoc"
	"github.com/sap/ord-directory-server/internal/ordhttp"
	"github.com/sap/ord-directory-server/internal/readygate"
	"github.com/sap/ord-directory-server/internal/scheduler"
	"github.com/sap/ord-directory-server/internal/statusobserver"
	"github.com/sap/ord-directory-server/internal/updatestate"
	"github.com/sap/ord-directory-server/internal/webhook"
	"github.com/sap/ord-directory-server/internal/workspace"
)

type CLI struct {
	Schema bool `help:"Print the configuration file schema." xor:"command"`

	Config *os.File `hcl:"-" help:"Configuration file path." required:"" default:"orddirectoryd.hcl"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.DefaultEnvars("ORD"))

	ast, err := hcl.Parse(cli.Config)
	kctx.FatalIfErrorf(err, "parse config")
	_ = cli.Config.Close() //nolint:errcheck

	var cfg config.Config
	schema, err := hcl.Schema(&cfg)
	kctx.FatalIfErrorf(err, "build config schema")

	if cli.Schema {
		printSchema(kctx, schema)
		return
	}

	config.InjectEnvars(schema, ast, "ORD", config.ParseEnvars())
	err = hcl.UnmarshalAST(ast, &cfg, hcl.HydratedImplicitBlocks(true))
	kctx.FatalIfErrorf(err, "unmarshal config")
	kctx.FatalIfErrorf(cfg.Validate(), "validate config")

	ctx := context.Background()
	logger, ctx := logging.Configure(ctx, cfg.LoggingConfig)

	metricsClient, err := metrics.New(ctx, cfg.MetricsConfig)
	kctx.FatalIfErrorf(err, "create metrics client")
	defer func() {
		if err := metricsClient.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close metrics client", "error", err)
		}
	}()
	kctx.FatalIfErrorf(metricsClient.ServeMetrics(ctx), "start metrics server")

	handler, err := newHandler(ctx, cfg)
	kctx.FatalIfErrorf(err, "build http handler")

	logger.InfoContext(ctx, "starting orddirectoryd", "bind", cfg.Bind, "sourceType", cfg.SourceType)

	server := newServer(ctx, handler, cfg)
	kctx.FatalIfErrorf(server.ListenAndServe(), "serve")
}

func printSchema(kctx *kong.Context, schema *hcl.AST) {
	text, err := hcl.MarshalAST(schema)
	kctx.FatalIfErrorf(err, "marshal schema")
	fmt.Printf("%s\n", text) //nolint:forbidigo
}

// newHandler wires C1-C9, the document service, and the three gated ORD
// routes behind the readiness gate, branching on source-type per spec.md §6.
func newHandler(ctx context.Context, cfg config.Config) (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /_liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck
	})
	mux.HandleFunc("GET /_readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck
	})

	accessStrategies := ordconfig.AccessStrategies(cfg.AuthMethods)

	cache := ordcache.New()
	warmerOpts := cachewarm.Options{
		ServerPathPrefix: "/ord/v1/",
		BaseURL:          cfg.BaseURL,
		AccessStrategies: accessStrategies,
	}

	var (
		state *updatestate.Machine
		obs   *statusobserver.Observer
		svc   *orddoc.Service
	)

	switch cfg.SourceType {
	case config.SourceLocal:
		warmer := cachewarm.New(cache, warmerOpts)
		fp := func() (string, error) { return fingerprint.Local(cfg.Directory) }
		svc = orddoc.NewService(cache, warmer, cfg.Directory, fp, fingerprint.SharesPrefix)

	case config.SourceGitHub:
		ws := workspace.New(cfg.DataRoot)
		if err := ws.Init(ctx); err != nil {
			return nil, err
		}

		credProvider := credentialProviderFor(cfg)
		token := ""
		if credProvider != nil {
			t, err := credProvider.Token(ctx)
			if err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "failed to resolve github credential at startup", "error", err)
			}
			token = t
		}

		coords := gitfetch.Coordinates{
			APIURL: cfg.GithubAPIURL,
			Branch: cfg.GithubBranch,
			Token:  token,
		}
		coords.Owner, coords.Repo = splitRepository(cfg.GithubRepository)

		fetcher := gitfetch.New()
		warmer := cachewarm.New(cache, warmerOpts)
		state = updatestate.New()
		obs = statusobserver.New(state, ws, 30*time.Second)

		sched := scheduler.New(fetcher, warmer, ws, state, scheduler.Options{
			Coordinates:           coords,
			DocumentsSubdirectory: cfg.DocumentsSubdirectory,
			Cooldown:              time.Duration(cfg.UpdateDelay) * time.Second,
			OnEvent:               obs.OnEvent,
		})

		fp := func() (string, error) {
			meta, err := ws.GetMetadata()
			if err != nil {
				return "", err
			}
			return cachewarm.DirectoryFingerprint(ws.CurrentDir(), meta.CommitHash, "")
		}
		svc = orddoc.NewService(cache, warmer, documentsPath(ws, cfg), fp, fingerprint.SharesPrefix)

		mux.Handle("POST /api/v1/webhook/github", webhook.New([]byte(cfg.WebhookSecret), cfg.GithubBranch, sched))
		mux.HandleFunc("GET /status.json", obs.ServeHTTP)
		mux.HandleFunc("GET /api/v1/ws", obs.ServeWebSocket)

		go sched.ScheduleImmediateUpdate(ctx, "startup")

	default:
		return nil, apierror.Internal("unrecognized source type", nil)
	}

	gate := readygate.New(state, cfg.ReadinessTimeout)
	var validator authcheck.Validator // nil: "open" is the only auth method this build mints credentials for
	handler := ordhttp.New(svc, orddoc.ProcessOptions{
		BaseURL:          cfg.BaseURL,
		ServerPathPrefix: "/ord/v1/",
		AccessStrategies: accessStrategies,
	}, validator)
	handler.Register(mux)

	return gate.Middleware(mux), nil
}

func documentsPath(ws *workspace.Workspace, cfg config.Config) string {
	sub := cfg.DocumentsSubdirectory
	if sub == "" || sub == "." {
		return ws.CurrentDir()
	}
	return ws.CurrentDir() + "/" + strings.TrimPrefix(sub, "/")
}

func credentialProviderFor(cfg config.Config) githubauth.CredentialProvider {
	if cfg.GithubAppConfig.IsConfigured() {
		return githubauth.NewAppTokenSource(cfg.GithubAppConfig, cfg.GithubAPIURL)
	}
	if cfg.GithubToken != "" {
		return githubauth.StaticToken(cfg.GithubToken)
	}
	return nil
}

func splitRepository(repo string) (owner, name string) {
	owner, name, _ = strings.Cut(repo, "/")
	return owner, name
}

func newServer(ctx context.Context, next http.Handler, cfg config.Config) *http.Server {
	logger := logging.FromContext(ctx)

	handler := otelhttp.NewMiddleware(cfg.MetricsConfig.ServiceName,
		otelhttp.WithMeterProvider(otel.GetMeterProvider()),
	)(next)
	handler = httputil.LoggingMiddleware(handler)

	return &http.Server{
		Addr:              cfg.Bind,
		Handler:           handler,
		ReadTimeout:       30 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			return logging.ContextWithLogger(ctx, logger.With("client", c.RemoteAddr().String()))
		},
	}
}
