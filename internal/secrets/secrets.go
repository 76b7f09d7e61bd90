// Package secrets provides credential retrieval strategies shared by the
// content API and search backends.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Fetch retrieves a set of credentials of type T.
type Fetch[T any] func() (T, error)

// SecretsManagerClient defines the interface for AWS Secrets Manager operations.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Static returns a Fetch that always yields v.
func Static[T any](v T) Fetch[T] {
	return func() (T, error) {
		return v, nil
	}
}

// Lazy wraps fetch so it runs at most once. Later calls return the first
// result, including its error.
func Lazy[T any](fetch Fetch[T]) Fetch[T] {
	return sync.OnceValues(fetch)
}

// AWS returns a Fetch that reads the JSON secret stored at "{env}/{name}"
// in AWS Secrets Manager.
func AWS[T any](ctx context.Context, client SecretsManagerClient, env, name string) Fetch[T] {
	secretPath := fmt.Sprintf("%s/%s", env, name)
	return func() (T, error) {
		return get[T](ctx, client, secretPath, "path")
	}
}

// AWSFromARN returns a Fetch that reads the JSON secret with the given ARN.
func AWSFromARN[T any](ctx context.Context, client SecretsManagerClient, secretArn string) Fetch[T] {
	return func() (T, error) {
		return get[T](ctx, client, secretArn, "ARN")
	}
}

func get[T any](ctx context.Context, client SecretsManagerClient, secretID, kind string) (T, error) {
	var secrets T

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return secrets, fmt.Errorf("failed to get secret from AWS Secrets Manager at %s %s: %w", kind, secretID, err)
	}

	if result.SecretString == nil {
		return secrets, fmt.Errorf("secret at %s %s has no string value", kind, secretID)
	}

	if err := json.Unmarshal([]byte(aws.ToString(result.SecretString)), &secrets); err != nil {
		return secrets, fmt.Errorf("failed to unmarshal secret JSON from %s %s: %w", kind, secretID, err)
	}

	return secrets, nil
}
