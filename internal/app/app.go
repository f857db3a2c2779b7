// Package app wires configuration into a ready-to-serve HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Appitzr-Project/Backend-Profile/internal/config"
	"github.com/Appitzr-Project/Backend-Profile/internal/handlers"
	"github.com/Appitzr-Project/Backend-Profile/internal/media"
	"github.com/Appitzr-Project/Backend-Profile/internal/metrics"
	appMiddleware "github.com/Appitzr-Project/Backend-Profile/internal/middleware"
	"github.com/Appitzr-Project/Backend-Profile/internal/schema"
	"github.com/Appitzr-Project/Backend-Profile/internal/services"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage/dynamo"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage/memory"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage/mongo"
)

type App struct {
	Handler http.Handler
	Log     logrus.FieldLogger

	closers []func(context.Context) error
}

// New builds stores, media, services and the router from cfg. Close releases
// whatever New opened, also when New fails halfway.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (_ *App, err error) {
	a := &App{Log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	var (
		m          *metrics.Metrics
		metricsHdl http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		metricsHdl = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	memberStore, venueStore, err := a.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	uploader, err := a.openUploader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithUploader(uploader),
		services.WithLogger(log),
		services.WithMetrics(m),
	}
	if cfg.Media.Moderation {
		mod, err := media.NewSafeSearch(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: safesearch: %w", err)
		}
		opts = append(opts, services.WithModerator(mod))
	}

	auth, err := a.authMiddleware(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rc := handlers.RouterConfig{
		BasePath:    cfg.BasePath,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Auth:        auth,
		Member: handlers.NewProfileHandler(
			services.NewProfileService(schema.Member, memberStore, opts...), cfg.RequestTimeout, log),
		Venue: handlers.NewProfileHandler(
			services.NewProfileService(schema.Venue, venueStore, opts...), cfg.RequestTimeout, log),
		Log:     log,
		Metrics: m,
	}
	if metricsHdl != nil {
		rc.MetricsPath = cfg.Metrics.Path
		rc.MetricsHandler = metricsHdl
	}
	if local, ok := uploader.(*media.Local); ok && strings.HasPrefix(cfg.Media.PublicBaseURL, "/") {
		rc.UploadsPath = cfg.Media.PublicBaseURL
		rc.UploadDir = local.Dir()
	}

	a.Handler = handlers.NewRouter(rc)

	log.WithFields(logrus.Fields{
		"store": cfg.Store.Kind,
		"media": cfg.Media.Kind,
		"auth":  cfg.Auth.Mode,
	}).Info("application wired")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (member, venue storage.ProfileStore, err error) {
	memberName := cfg.TableName(cfg.Profiles.MemberTable)
	venueName := cfg.TableName(cfg.Profiles.VenueTable)

	switch cfg.Store.Kind {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		a.onClose(client.Disconnect)

		db := client.Database(cfg.Store.MongoDB)
		return mongo.New(ctx, db.Collection(memberName)), mongo.New(ctx, db.Collection(venueName)), nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg.Store.DynamoRegion, cfg.Store.DynamoEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		m, v := dynamo.New(client, memberName), dynamo.New(client, venueName)
		if cfg.Store.DynamoCreateTable {
			for _, s := range []*dynamo.Store{m, v} {
				if err := s.EnsureTable(ctx); err != nil {
					return nil, nil, fmt.Errorf("app: %w", err)
				}
			}
		}
		return m, v, nil

	default:
		m, err := a.memoryStore(cfg, memberName)
		if err != nil {
			return nil, nil, err
		}
		v, err := a.memoryStore(cfg, venueName)
		if err != nil {
			return nil, nil, err
		}
		return m, v, nil
	}
}

func (a *App) memoryStore(cfg *config.Config, name string) (*memory.Store, error) {
	var opts []memory.Option
	if cfg.Store.DataDir != "" {
		f, err := storage.NewJSONFile(cfg.Store.DataDir, name+".json")
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		opts = append(opts, memory.WithSnapshot(f))
	}
	s, err := memory.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return s, nil
}

func (a *App) openUploader(ctx context.Context, cfg *config.Config) (media.Uploader, error) {
	switch cfg.Media.Kind {
	case config.MediaGCS:
		g, err := media.NewGCS(ctx, cfg.Media.Bucket)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.onClose(func(context.Context) error { return g.Close() })
		return g, nil

	case config.MediaS3:
		s, err := media.NewS3(ctx, media.S3Config{
			Endpoint:      cfg.Media.S3Endpoint,
			AccessKey:     cfg.Media.S3AccessKey,
			SecretKey:     cfg.Media.S3SecretKey,
			Region:        cfg.Media.S3Region,
			Bucket:        cfg.Media.Bucket,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return s, nil

	default:
		l, err := media.NewLocal(cfg.Media.UploadDir, cfg.Media.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return l, nil
	}
}

func (a *App) authMiddleware(ctx context.Context, cfg *config.Config) (func(http.Handler) http.Handler, error) {
	switch cfg.Auth.Mode {
	case config.AuthJWT:
		return appMiddleware.JWTAuth(cfg.Auth.JWTSecret), nil

	case config.AuthFirebase:
		client, err := appMiddleware.NewFirebaseAuthClient(ctx, appMiddleware.FirebaseAuthConfig{
			ProjectID:       cfg.Auth.FirebaseProjectID,
			CredentialsJSON: cfg.Auth.FirebaseCredentialsJSON,
		})
		if err != nil {
			// Tokens are answered with 401 until the client can be built.
			a.Log.WithError(err).Warn("failed to initialize Firebase Auth client")
			return appMiddleware.FirebaseAuth(nil), nil
		}
		return appMiddleware.FirebaseAuth(client), nil

	default:
		return appMiddleware.GatewayAuth(), nil
	}
}
