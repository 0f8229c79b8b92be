package gateway

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/atulpatildbz/groq-speech-to-text/internal/config"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
	"github.com/atulpatildbz/groq-speech-to-text/internal/session"
)

// NewGatewayFromConfig creates a StorageGateway based on the account config
// type. label identifies the account ("source" or "dest") in sessions, logs
// and errors. sessions is only consulted for backends that need an OAuth
// identity; acquiring one may run the interactive authorization flow.
func NewGatewayFromConfig(ctx context.Context, cfg config.AccountConfig, label string, sessions *session.Manager) (gdsync.StorageGateway, error) {
	switch cfg.Type {
	case "drive", "":
		if cfg.FolderID == "" {
			return nil, fmt.Errorf("drive account %s requires folder_id to be set", label)
		}
		sess, err := sessions.Acquire(ctx, session.Account{
			Label:           label,
			CredentialsPath: cfg.CredentialsPath,
			TokenPath:       cfg.TokenPath,
		})
		if err != nil {
			return nil, err
		}
		svc, err := drive.NewService(ctx, option.WithHTTPClient(sess.Client(ctx)))
		if err != nil {
			return nil, fmt.Errorf("creating drive client for %s: %w", label, err)
		}
		return NewDriveGateway(svc, label), nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 account %s requires s3_bucket to be set", label)
		}
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
		if cfg.S3AccessKeyID != "" {
			secret := os.Getenv(cfg.S3SecretKeyEnv)
			if secret == "" {
				return nil, &gdsync.ConfigError{
					Field: fmt.Sprintf("accounts.%s.s3_secret_key_env", label),
					Err:   fmt.Errorf("environment variable %s is empty", cfg.S3SecretKeyEnv),
				}
			}
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, secret, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config for %s: %w", label, err)
		}
		return NewS3Gateway(s3.NewFromConfig(awsCfg), cfg.S3Bucket, label), nil

	case "memory":
		return NewMemoryGateway(), nil

	default:
		return nil, fmt.Errorf("unknown account type: %s", cfg.Type)
	}
}
