package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func retrieveCredentials(ctx context.Context, secretID string) (*Credentials, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg)

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", secretID, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretID)
	}
	return parseCredentials([]byte(*result.SecretString))
}

func parseCredentials(raw []byte) (*Credentials, error) {
	var secret Credentials
	if err := json.Unmarshal(raw, &secret); err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if secret.Username == "" || secret.Password == "" {
		return nil, fmt.Errorf("secret is missing username or password")
	}
	return &secret, nil
}
