package app

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/you-humble/taskboard/internal/infra/config"
	blobstore "github.com/you-humble/taskboard/internal/infra/store/blob"
	taskstore "github.com/you-humble/taskboard/internal/infra/store/task"
	"github.com/you-humble/taskboard/internal/transport"
	"github.com/you-humble/taskboard/internal/usecase"
	"github.com/you-humble/taskboard/web"

	"github.com/redis/go-redis/v9"
)

const defaultCfgPath = "./configs/local.yaml"

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type dependencyInjector struct {
	cfg    *config.Config
	logger *slog.Logger

	redis     *redis.Client
	taskStore usecase.TaskRepository
	blobStore usecase.BlobStore

	usecase transport.Usecase
	handler transport.Handler
	router  Router
}

func newDI() *dependencyInjector {
	return &dependencyInjector{}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		path := os.Getenv("CONFIG_PATH")
		if path == "" {
			path = defaultCfgPath
		}
		di.cfg = config.MustLoad(path)
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(di.logger)
	return di.logger
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := taskstore.NewClient(taskstore.ClientConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("redis client: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) TaskRepository(ctx context.Context) usecase.TaskRepository {
	if di.taskStore == nil {
		di.taskStore = taskstore.NewStore(di.RedisClient(ctx))
	}
	return di.taskStore
}

func (di *dependencyInjector) BlobStore(ctx context.Context) usecase.BlobStore {
	if di.blobStore == nil {
		cfg := di.Config().Blob

		store, err := blobstore.New(ctx, blobstore.Config{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
		})
		if err != nil {
			log.Fatalf("blob store: %+v", err)
		}

		if store.Ready() {
			di.Logger().Info("initialized blob store",
				slog.String("endpoint", cfg.Endpoint),
				slog.String("bucket", cfg.Bucket),
			)
		}

		di.blobStore = store
	}

	return di.blobStore
}

func (di *dependencyInjector) Usecase(ctx context.Context) transport.Usecase {
	if di.usecase == nil {
		di.usecase = usecase.New(
			di.Config().SignURLTTL,
			di.TaskRepository(ctx),
			di.BlobStore(ctx),
		)
	}

	return di.usecase
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		di.handler = transport.NewHandler(di.Config().MaxUploadMb, di.Usecase(ctx))
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		di.router = transport.NewRouter(di.Handler(ctx), web.Handler())
	}

	return di.router
}
