package upload

import (
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Uploader = (*AzureUploader)(nil)

// Artifacts mirrored to an Azure Blob container
type AzureUploader struct {
	client    *azblob.Client
	container string
}

// `container` must exist in the storage account at `serviceURL`
func NewAzureUploader(accountName, accountKey, serviceURL, container string) (*AzureUploader, error) {
	if container == "" {
		return nil, errors.New("container is required")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}

	return NewAzureUploaderFromClient(client, container), nil
}

func NewAzureUploaderFromClient(client *azblob.Client, container string) *AzureUploader {
	return &AzureUploader{client: client, container: container}
}

func (u *AzureUploader) Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.Upload", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int64("length", length),
	))
	defer span.End()

	if _, err := u.client.UploadStream(ctx, u.container, key, reader, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload blob")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded blob")
	return nil
}

func (u *AzureUploader) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "AzureUploader.Exists", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	_, err := u.client.ServiceClient().
		NewContainerClient(u.container).
		NewBlobClient(key).
		GetProperties(ctx, nil)

	var respErr *azcore.ResponseError
	switch {
	case err == nil:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found blob")
		return true, nil
	case errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.BlobNotFound):
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "did not find blob")
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get blob properties")
		return false, err
	}
}

func (u *AzureUploader) StoreIdentifier(_ context.Context) (string, error) {
	return "azure:" + u.container, nil
}
