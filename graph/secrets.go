package graph

import (
	"context"
	"fmt"
	"os"

	"github.com/letmevibethatforyou/contentx/internal/secrets"
)

// Secrets holds the content API credentials.
type Secrets struct {
	// SingleKey is the public key for published content.
	SingleKey string `json:"single_key"`
}

// FetchSecrets retrieves content API credentials.
type FetchSecrets = secrets.Fetch[Secrets]

// StaticSecrets returns a FetchSecrets function that provides static credentials.
func StaticSecrets(singleKey string) FetchSecrets {
	return secrets.Static(Secrets{SingleKey: singleKey})
}

// EnvSecrets reads the single key from GRAPH_SINGLE_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		key := os.Getenv("GRAPH_SINGLE_KEY")
		if key == "" {
			return Secrets{}, fmt.Errorf("GRAPH_SINGLE_KEY environment variable is not set")
		}
		return Secrets{SingleKey: key}, nil
	}
}

// AWSSecrets reads credentials stored at "{env}/graph" in AWS Secrets Manager.
func AWSSecrets(ctx context.Context, client secrets.SecretsManagerClient, env string) FetchSecrets {
	return secrets.AWS[Secrets](ctx, client, env, "graph")
}

// AWSSecretsFromARN reads credentials from the secret with the given ARN.
func AWSSecretsFromARN(ctx context.Context, client secrets.SecretsManagerClient, secretArn string) FetchSecrets {
	return secrets.AWSFromARN[Secrets](ctx, client, secretArn)
}
