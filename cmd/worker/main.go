package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	httpadapter "github.com/design-smith/AWSDataScanner/internal/adapters/http"
	pg "github.com/design-smith/AWSDataScanner/internal/adapters/postgres"
	s3adapter "github.com/design-smith/AWSDataScanner/internal/adapters/s3"
	sqsadapter "github.com/design-smith/AWSDataScanner/internal/adapters/sqs"
	"github.com/design-smith/AWSDataScanner/internal/config"
	"github.com/design-smith/AWSDataScanner/internal/detect"
	"github.com/design-smith/AWSDataScanner/internal/findings"
	"github.com/design-smith/AWSDataScanner/internal/scan"
	jobsvc "github.com/design-smith/AWSDataScanner/internal/services/jobs"
	"github.com/design-smith/AWSDataScanner/internal/workers/scanrunner"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	s3Client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	sqsClient := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	})

	objects := s3adapter.NewFromClient(s3Client)
	queue := sqsadapter.NewFromClient(sqsClient, sqsadapter.Config{
		QueueURL:          cfg.QueueURL,
		DeadLetterURL:     cfg.DeadLetterURL,
		VisibilityTimeout: cfg.VisibilityTimeout,
	}, log)

	scanner := scan.NewFileScanner(objects, detect.NewSet(), cfg.ChunkSize, cfg.MaxObjectSize)
	writer := findings.NewWriter(db)
	jobs := jobsvc.New(db, objects, queue, log)

	runner := scanrunner.New(queue, db, db, scanner, writer, scanrunner.Config{
		Concurrency:       cfg.ScanWorkers,
		ReceiveBatch:      cfg.ReceiveBatch,
		PollWait:          cfg.PollWait,
		VisibilityTimeout: cfg.VisibilityTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StuckAfter:        cfg.StuckAfter,
		SweepInterval:     cfg.SweepInterval,
	}, log)
	runnerDone := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(runnerDone)
	}()
	log.WithField("workers", cfg.ScanWorkers).Info("scan workers started")

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpadapter.New(jobs, queue, log).Routes(),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.WithField("addr", cfg.ListenAddr).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.Errorf("server error: %v", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	select {
	case <-runnerDone:
	case <-shutdownCtx.Done():
		log.Warn("workers did not drain before deadline")
	}
}
