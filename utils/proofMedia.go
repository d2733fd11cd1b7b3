package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const (
	proofMaxEdge      = 1600
	proofThumbEdge    = 320
	proofJpegQuality  = 85
	proofObjectPrefix = "proofs"
)

// getGCSClient initializes a Google Cloud Storage client. Prefer ADC
// (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS); set
// GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGCSClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ProofUpload is the result of storing one completion proof photo.
type ProofUpload struct {
	ObjectName string `json:"object_name"`
	ThumbName  string `json:"thumb_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// UploadProofPhoto decodes a base64 photo coming from the bot, downscales it
// to a bounded size, renders a thumbnail, and uploads both under
// proofs/<entryId>/<uuid>[_thumb].jpg. The returned object names are what the
// task entry stores as completion media references.
func UploadProofPhoto(ctx context.Context, taskEntryId int, photoBase64 string) (*ProofUpload, error) {
	raw, err := base64.StdEncoding.DecodeString(photoBase64)
	if err != nil {
		return nil, fmt.Errorf("decode proof photo: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode proof image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > proofMaxEdge || bounds.Dy() > proofMaxEdge {
		img = imaging.Fit(img, proofMaxEdge, proofMaxEdge, imaging.Lanczos)
	}
	thumb := imaging.Fit(img, proofThumbEdge, proofThumbEdge, imaging.Lanczos)

	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	client, err := getGCSClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	base := fmt.Sprintf("%s/%d/%s", proofObjectPrefix, taskEntryId, uuid.NewString())
	objectName := base + ".jpg"
	thumbName := base + "_thumb.jpg"

	if err := writeJpegObject(ctx, client, bucketName, objectName, img); err != nil {
		return nil, err
	}
	if err := writeJpegObject(ctx, client, bucketName, thumbName, thumb); err != nil {
		return nil, err
	}

	final := img.Bounds()
	return &ProofUpload{
		ObjectName: objectName,
		ThumbName:  thumbName,
		Width:      final.Dx(),
		Height:     final.Dy(),
	}, nil
}

func writeJpegObject(ctx context.Context, client *storage.Client, bucketName, objectName string, img image.Image) error {
	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "image/jpeg"
	if err := jpeg.Encode(wc, img, &jpeg.Options{Quality: proofJpegQuality}); err != nil {
		_ = wc.Close()
		return fmt.Errorf("encode %s: %w", objectName, err)
	}
	return wc.Close()
}
