package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// mockSecretsManagerClient implements SecretsManagerClient for testing
type mockSecretsManagerClient struct {
	secretValue *string
	err         error
	requested   []string
}

func (m *mockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.requested = append(m.requested, aws.ToString(params.SecretId))
	if m.err != nil {
		return nil, m.err
	}

	return &secretsmanager.GetSecretValueOutput{
		SecretString: m.secretValue,
	}, nil
}

type testSecrets struct {
	AppID  string `json:"app_id"`
	APIKey string `json:"api_key"`
}

func TestAWS_Success(t *testing.T) {
	client := &mockSecretsManagerClient{
		secretValue: aws.String(`{"app_id":"test-app-id","api_key":"test-api-key"}`),
	}

	secrets, err := AWS[testSecrets](context.Background(), client, "production", "graph")()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if secrets.AppID != "test-app-id" {
		t.Errorf("Expected AppID to be 'test-app-id', got '%s'", secrets.AppID)
	}
	if secrets.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey to be 'test-api-key', got '%s'", secrets.APIKey)
	}
	if len(client.requested) != 1 || client.requested[0] != "production/graph" {
		t.Errorf("Expected secret path production/graph, got %v", client.requested)
	}
}

func TestAWS_Errors(t *testing.T) {
	tests := []struct {
		name        string
		client      *mockSecretsManagerClient
		expectedMsg string
	}{
		{
			name:        "get secret error",
			client:      &mockSecretsManagerClient{err: errors.New("secrets manager error")},
			expectedMsg: "failed to get secret from AWS Secrets Manager at path staging/algolia",
		},
		{
			name:        "nil secret string",
			client:      &mockSecretsManagerClient{},
			expectedMsg: "secret at path staging/algolia has no string value",
		},
		{
			name:        "invalid json",
			client:      &mockSecretsManagerClient{secretValue: aws.String(`{"app_id":}`)},
			expectedMsg: "failed to unmarshal secret JSON from path staging/algolia",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AWS[testSecrets](context.Background(), tt.client, "staging", "algolia")()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectedMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.expectedMsg, err.Error())
			}
		})
	}
}

func TestAWSFromARN(t *testing.T) {
	arn := "arn:aws:secretsmanager:eu-west-1:123456789012:secret:graph-AbCdEf"
	client := &mockSecretsManagerClient{
		secretValue: aws.String(`{"app_id":"arn-app"}`),
	}

	secrets, err := AWSFromARN[testSecrets](context.Background(), client, arn)()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if secrets.AppID != "arn-app" {
		t.Errorf("Expected AppID to be 'arn-app', got '%s'", secrets.AppID)
	}
	if client.requested[0] != arn {
		t.Errorf("Expected lookup by ARN, got %v", client.requested)
	}
}

func TestLazyRunsOnce(t *testing.T) {
	calls := 0
	fetch := Lazy(func() (testSecrets, error) {
		calls++
		return testSecrets{AppID: "a"}, nil
	})

	for range 3 {
		if s, err := fetch(); err != nil || s.AppID != "a" {
			t.Fatalf("Unexpected result %+v, %v", s, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected one fetch, got %d", calls)
	}

	if s, _ := Static(testSecrets{APIKey: "k"})(); s.APIKey != "k" {
		t.Errorf("Expected static secrets, got %+v", s)
	}
}
