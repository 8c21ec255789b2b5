package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/loopfz/gadgeto/tonic"
	"golang.org/x/sync/errgroup"

	api "github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/binder"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/database"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/handler"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/publish"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/render"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/repositories"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/services"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/config"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/logging"
)

// version wordt bij het bouwen gezet met -ldflags "-X main.version=..."
var version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)
	tonic.SetErrorHook(api.ErrorHook(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}

	repo, err := newRecordRepository(cfg, awsCfg)
	if err != nil {
		log.Fatalf("record store unavailable: %v", err)
	}

	var assets fs.FS = binder.DefaultAssets()
	if cfg.TemplateDir != "" {
		assets = os.DirFS(cfg.TemplateDir)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	svc := services.NewIssuanceService(
		repo,
		binder.New(assets, cfg.DateLayout, cfg.Location),
		render.NewChromeRenderer(render.Options{
			Mode:            cfg.Mode,
			ExecPath:        cfg.ChromePath,
			Timeout:         cfg.RenderTimeout,
			MaxConcurrent:   cfg.MaxConcurrentRenders,
			LocalOutputPath: cfg.LocalOutputPath,
			Logger:          logger.With("component", "renderer"),
		}),
		publish.NewS3Publisher(s3Client, publish.Config{Bucket: cfg.BucketName, StorageHost: cfg.StorageHost}),
		services.WithLogger(logger.With("component", "issuance")),
		services.WithMessage(cfg.SuccessMessage),
	)
	controller := handler.NewCertificatesController(svc)
	router := api.NewRouter(version, controller, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server is running", "port", cfg.Port, "mode", string(cfg.Mode), "record_store", cfg.RecordStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout+5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
	logger.Info("server stopped")
}

func newRecordRepository(cfg *config.Config, awsCfg aws.Config) (repositories.RecordRepository, error) {
	if cfg.RecordStore == config.StoreDynamoDB {
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		return repositories.NewDynamoRecordRepository(client, cfg.RecordTable), nil
	}

	db, err := database.Connect(cfg.DB.DSN(), cfg.RecordTable)
	if err != nil {
		return nil, err
	}
	return repositories.NewRecordRepository(db, cfg.RecordTable), nil
}
