// Package storage persists assembled graph artifacts in an S3-compatible
// object store. Graphs are stored as JSON documents under graphs/<id>.json.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/entlink/entlink/internal/util"
	"github.com/entlink/entlink/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// graphArtifact is the stored document: the graph plus the triples that
// could not be attached to any node.
type graphArtifact struct {
	Graph      *common.Graph             `json:"graph"`
	Unresolved []common.UnresolvedTriple `json:"unresolved,omitempty"`
}

// NewS3Client builds a client from the AWS_* environment variables.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(util.GetEnv("AWS_REGION")),
		awsconfig.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

func graphKey(id string) string {
	return fmt.Sprintf("graphs/%s.json", id)
}

// PutGraph uploads the graph artifact and returns its object key.
func PutGraph(ctx context.Context, client *s3.Client, graph *common.Graph, unresolved []common.UnresolvedTriple) (string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	payload, err := json.Marshal(graphArtifact{Graph: graph, Unresolved: unresolved})
	if err != nil {
		return "", fmt.Errorf("failed to encode graph %s: %w", graph.ID, err)
	}

	key := graphKey(graph.ID)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload graph %s: %w", graph.ID, err)
	}

	return key, nil
}

// GetGraph downloads a stored graph artifact by its assembly ID.
func GetGraph(ctx context.Context, client *s3.Client, id string) (*common.Graph, []common.UnresolvedTriple, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(graphKey(id)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get graph %s: %w", id, err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graph %s: %w", id, err)
	}

	var artifact graphArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, nil, fmt.Errorf("failed to decode graph %s: %w", id, err)
	}
	return artifact.Graph, artifact.Unresolved, nil
}

// DeleteGraph removes a stored graph artifact.
func DeleteGraph(ctx context.Context, client *s3.Client, id string) error {
	bucket := util.GetEnv("AWS_BUCKET")
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(graphKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}
	return nil
}
