package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	finetuneRequests     atomic.Int64
	finetuneFailures     atomic.Int64
	cacheHits            atomic.Int64
	cacheMisses          atomic.Int64
	modelsReused         atomic.Int64
	trainingRuns         atomic.Int64
	trainingFailures     atomic.Int64
	evaluationFailures   atomic.Int64
	optimizationsApplied atomic.Int64
	deploymentsCompleted atomic.Int64
	deploymentFailures   atomic.Int64
)

func Init() {}

func IncFineTuneRequest()     { finetuneRequests.Add(1) }
func IncFineTuneFailure()     { finetuneFailures.Add(1) }
func IncCacheHit()            { cacheHits.Add(1) }
func IncCacheMiss()           { cacheMisses.Add(1) }
func IncModelReused()         { modelsReused.Add(1) }
func IncTrainingRun()         { trainingRuns.Add(1) }
func IncTrainingFailure()     { trainingFailures.Add(1) }
func IncEvaluationFailure()   { evaluationFailures.Add(1) }
func IncOptimizationApplied() { optimizationsApplied.Add(1) }
func IncDeploymentCompleted() { deploymentsCompleted.Add(1) }
func IncDeploymentFailure()   { deploymentFailures.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP modelforge_finetune_requests_total Number of fine-tuning requests received.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_requests_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_requests_total %d\n", finetuneRequests.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_failures_total Number of fine-tuning requests that resolved unsuccessfully.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_failures_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_failures_total %d\n", finetuneFailures.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_cache_hits_total Number of requests served from the result cache.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_cache_hits_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_cache_hits_total %d\n", cacheHits.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_cache_misses_total Number of requests that missed the result cache.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_cache_misses_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_cache_misses_total %d\n", cacheMisses.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_models_reused_total Number of requests short-circuited by an existing registry model.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_models_reused_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_models_reused_total %d\n", modelsReused.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_training_runs_total Number of training runs started.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_training_runs_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_training_runs_total %d\n", trainingRuns.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_training_failures_total Number of training runs that failed.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_training_failures_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_training_failures_total %d\n", trainingFailures.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_evaluation_failures_total Number of evaluation attempts that failed without failing the request.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_evaluation_failures_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_evaluation_failures_total %d\n", evaluationFailures.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_optimizations_applied_total Number of models that went through post-training optimization.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_optimizations_applied_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_optimizations_applied_total %d\n", optimizationsApplied.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_deployments_total Number of models deployed successfully.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_deployments_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_deployments_total %d\n", deploymentsCompleted.Load())

	fmt.Fprintf(w, "# HELP modelforge_finetune_deployment_failures_total Number of deployments that failed after registration.\n")
	fmt.Fprintf(w, "# TYPE modelforge_finetune_deployment_failures_total counter\n")
	fmt.Fprintf(w, "modelforge_finetune_deployment_failures_total %d\n", deploymentFailures.Load())
}
