package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/browser"
	"github.com/foiahound/foiahound/internal/config"
	"github.com/foiahound/foiahound/internal/llmclient"
	"github.com/foiahound/foiahound/internal/observability"
	"github.com/foiahound/foiahound/internal/portal"
	"github.com/foiahound/foiahound/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// portalComponents holds the initialized services behind an authenticated
// portal session.
type portalComponents struct {
	Manager *browser.Manager
	Session *browser.Session
	Agent   *portal.Agent
	Router  *llmclient.LLMRouter
}

// Shutdown gracefully closes the browser session and its manager.
func (pc *portalComponents) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger := observability.GetLogger()
	if pc.Session != nil {
		if err := pc.Session.Close(shutdownCtx); err != nil {
			logger.Warn("Error closing browser session", zap.Error(err))
		}
	}
	if pc.Manager != nil {
		if err := pc.Manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
}

// openPortal launches a browser, opens the configured portal, and logs in.
// The session artifact is written regardless of outcome.
func openPortal(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*portalComponents, error) {
	if cfg.Portal().URL == "" {
		return nil, fmt.Errorf("portal URL is not configured (use --portal or portal.url)")
	}
	creds := schemas.Credentials{
		Email:    cfg.Portal().Email,
		Password: cfg.Portal().Password,
	}
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("portal credentials are not configured (FOIAHOUND_PORTAL_EMAIL / FOIAHOUND_PORTAL_PASSWORD)")
	}

	router, err := llmclient.NewRouterFromConfig(cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM router: %w", err)
	}

	components := &portalComponents{Router: router}
	components.Manager = browser.NewManager(cfg, logger)

	session, err := components.Manager.NewSession(ctx)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	components.Session = session
	components.Agent = portal.New(cfg, session, router, logger)

	nav, navErr := components.Agent.Open(ctx)
	var login *portal.LoginResult
	var loginErr error
	if navErr == nil && nav.Success {
		login, loginErr = components.Agent.Login(ctx, creds)
	}

	result := portal.NewSessionResult(cfg.Portal().URL, nav, login, components.Agent.Screenshots())
	if path, err := portal.WriteArtifacts(result, cfg.Artifacts().Dir); err != nil {
		logger.Warn("Failed to write session artifacts", zap.Error(err))
	} else {
		logger.Info("Session artifacts written", zap.String("path", path))
	}

	if navErr != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open portal: %w", navErr)
	}
	if nav != nil && !nav.Success {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("portal is not reachable: %s", nav.Err)
	}
	if loginErr != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("portal login failed: %w", loginErr)
	}
	if login == nil || !login.Outcome.Success {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("portal login did not succeed")
	}
	return components, nil
}

// withStore opens the configured database and hands the store to fn. A blank
// database URL is not an error; persistence is simply skipped.
func withStore(ctx context.Context, cfg config.Interface, logger *zap.Logger, fn func(*store.Store) error) error {
	if cfg.Database().URL == "" {
		logger.Debug("No database configured, skipping persistence.")
		return nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	return fn(st)
}

func persistCrawlResult(ctx context.Context, cfg config.Interface, logger *zap.Logger, result *schemas.CrawlResult) error {
	return withStore(ctx, cfg, logger, func(st *store.Store) error {
		return st.PersistCrawlResult(ctx, result)
	})
}

func persistSnapshot(ctx context.Context, cfg config.Interface, logger *zap.Logger, sessionID string, records []schemas.RequestRecord) error {
	return withStore(ctx, cfg, logger, func(st *store.Store) error {
		return st.PersistRequestSnapshot(ctx, sessionID, records)
	})
}

// writeJSONArtifact persists v under the artifacts directory and returns the
// file path.
func writeJSONArtifact(dir, prefix string, v interface{}) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, time.Now().UTC().Format("20060102_150405")))
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s artifact: %w", prefix, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s artifact: %w", prefix, err)
	}
	return path, nil
}
