package finetune

import (
	"errors"
	"fmt"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

var (
	errEmptyDataset        = errors.New("training data is empty")
	errUnsupportedCategory = errors.New("unsupported model category")
	errNoUsableExamples    = errors.New("no usable training examples after preprocessing")
	errInvalidMode         = errors.New("invalid training mode")
)

// ValidationError marks a request that cannot succeed as submitted: empty
// datasets, unsupported categories, malformed mode values. Fatal for the
// request but never for the process.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// EvaluationError wraps a failed evaluation attempt. It does not fail the
// request: the pipeline records it and continues with empty metrics.
type EvaluationError struct {
	ModelID string
	reason  error
}

func (e EvaluationError) Error() string {
	return fmt.Sprintf("evaluation of model %s failed: %v", e.ModelID, e.reason)
}

func (e EvaluationError) Unwrap() error {
	return e.reason
}

func IsEvaluationError(err error) bool {
	var ee EvaluationError
	return errors.As(err, &ee)
}

// DeploymentError reports a deployment failure after registration already
// committed. The request resolves unsuccessfully, but the model stays in
// the registry and the result marks it as registered.
type DeploymentError struct {
	ModelID     string
	Environment models.DeploymentEnvironment
	reason      error
}

func (e DeploymentError) Error() string {
	return fmt.Sprintf("deployment of model %s to %s failed: %v", e.ModelID, e.Environment, e.reason)
}

func (e DeploymentError) Unwrap() error {
	return e.reason
}

func IsDeploymentError(err error) bool {
	var de DeploymentError
	return errors.As(err, &de)
}
