package algolia

import (
	"context"
	"fmt"
	"os"

	"github.com/letmevibethatforyou/contentx/internal/secrets"
)

// Secrets holds the Algolia application credentials.
type Secrets struct {
	// AppID is the Algolia application ID.
	AppID string `json:"app_id"`
	// WriteApiKey is the Algolia write API key.
	WriteApiKey string `json:"write_api_key"`
}

// FetchSecrets is a function type that retrieves Algolia credentials.
// It allows for different secret retrieval strategies (static, environment variables, etc.).
type FetchSecrets = secrets.Fetch[Secrets]

// StaticSecrets returns a FetchSecrets function that provides static credentials.
// This is useful for testing or when credentials are known at compile time.
func StaticSecrets(appID, writeApiKey string) FetchSecrets {
	return secrets.Static(Secrets{
		AppID:       appID,
		WriteApiKey: writeApiKey,
	})
}

// EnvSecrets reads credentials from ALGOLIA_APP_ID and ALGOLIA_API_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		appID := os.Getenv("ALGOLIA_APP_ID")
		if appID == "" {
			return Secrets{}, fmt.Errorf("ALGOLIA_APP_ID environment variable is not set")
		}

		apiKey := os.Getenv("ALGOLIA_API_KEY")
		if apiKey == "" {
			return Secrets{}, fmt.Errorf("ALGOLIA_API_KEY environment variable is not set")
		}

		return Secrets{
			AppID:       appID,
			WriteApiKey: apiKey,
		}, nil
	}
}

// AWSSecrets returns a FetchSecrets function that retrieves Algolia credentials
// from AWS Secrets Manager. The secret is expected to be stored at the path
// "{environment}/algolia" and contain JSON with app_id and write_api_key fields.
func AWSSecrets(ctx context.Context, client secrets.SecretsManagerClient, env string) FetchSecrets {
	return secrets.AWS[Secrets](ctx, client, env, "algolia")
}

// AWSSecretsFromARN returns a FetchSecrets function that retrieves Algolia credentials
// from AWS Secrets Manager using the provided secret ARN.
func AWSSecretsFromARN(ctx context.Context, client secrets.SecretsManagerClient, secretArn string) FetchSecrets {
	return secrets.AWSFromARN[Secrets](ctx, client, secretArn)
}
