package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/modelforge-ai/platform/pkg/api"
	"github.com/modelforge-ai/platform/pkg/common/config"
	"github.com/modelforge-ai/platform/pkg/common/database"
	"github.com/modelforge-ai/platform/pkg/common/kafka"
	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
	"github.com/modelforge-ai/platform/pkg/evaluation"
	"github.com/modelforge-ai/platform/pkg/finetune"
	"github.com/modelforge-ai/platform/pkg/hardware"
	"github.com/modelforge-ai/platform/pkg/observability/metrics"
	"github.com/modelforge-ai/platform/pkg/registry"
	"github.com/modelforge-ai/platform/pkg/storage"
	"github.com/modelforge-ai/platform/pkg/trainer"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := registry.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate registry tables")
	}

	resultCache := storage.NewResultCache()
	defer database.CloseRedis()

	remote := trainer.NewRemoteClient(cfg.RemoteTrainingBaseURL, cfg.OAuthTokenURL, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.RemoteTrainingTimeout)
	deployer := trainer.NewDeployer(cfg.TrainingArtifactDir, cfg.LocalDeployDir, cfg.EdgeDeployDir, cfg.CloudDeployBaseURL, cfg.RemoteTrainingTimeout)
	localTrainer, err := trainer.New(cfg.TrainingArtifactDir, remote, deployer)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialize trainer")
	}

	profile, err := finetune.LoadProfile(cfg.TuningProfilePath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to built-in tuning profile")
		profile = finetune.DefaultProfile()
	}

	producer := kafka.NewProducer(cfg.KafkaEventTopic)
	defer producer.Close()

	service := finetune.NewService(finetune.Dependencies{
		Cache:     resultCache,
		Registry:  repo,
		Trainer:   localTrainer,
		Evaluator: evaluation.NewEvaluator(cfg.TrainingArtifactDir),
		Detector:  evaluation.NewDetector(),
		Hardware:  hardware.NewProber(),
		Events:    producer,
	}, finetune.Settings{
		Profile:                &profile,
		MaxConcurrentTrainings: cfg.MaxConcurrentTrainings,
		RequestTimeout:         cfg.RequestTimeout,
		TrainerMaxAttempts:     cfg.TrainerMaxAttempts,
		Source:                 "finetune-service",
	})

	if mode := models.TrainingMode(cfg.PinnedMode); mode != models.ModeAuto {
		if err := service.SetOperationMode(mode); err != nil {
			logger.Log.WithError(err).Fatal("invalid TRAINING_MODE")
		}
	}

	consumer := kafka.NewConsumer(cfg.KafkaRequestTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, requestHandler(service)); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	router := mux.NewRouter()
	router.Use(api.Logging)
	router.Use(api.Recovery)
	router.Use(api.RateLimit(50, 100)) // basic per-process limiter
	router.Use(api.CORS)
	router.Use(api.BodyLimit(cfg.MaxRequestBody))
	api.NewHandler(service).Register(router)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Fine-tuning service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start fine-tuning service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down fine-tuning service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Fine-tuning service forced to shutdown")
	}
	logger.Log.Info("Fine-tuning service stopped")
}

// requestHandler runs queued fine-tuning requests from the intake topic.
// Malformed events are dropped and committed so they do not wedge the
// consumer group.
func requestHandler(service *finetune.Service) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			logger.Log.WithError(err).Warn("Dropping unreadable fine-tuning request event")
			return nil
		}

		var req models.FineTuningRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Dropping malformed fine-tuning request event")
			return nil
		}
		if req.ModelCategory == "" || req.Purpose == "" {
			logger.Log.WithField("event_id", event.ID).Warn("Dropping fine-tuning request event without category or purpose")
			return nil
		}

		result := service.FineTuneModel(ctx, req)
		entry := logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"model_id": result.ModelID,
			"success":  result.Success,
		})
		if result.Success {
			entry.Info("Queued fine-tuning request completed")
		} else {
			entry.Warn("Queued fine-tuning request failed")
		}
		return nil
	}
}
