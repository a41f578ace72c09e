package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestStore() *InMemoryBlobStore {
	return NewInMemoryBlobStore("/api/v1/chat/attachments", 1024)
}

func TestUploadAndDownload(t *testing.T) {
	store := newTestStore()
	content := []byte("fake png bytes")

	meta, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    "scan.png",
		ContentType: "image/png",
		UploaderID:  "doc-1",
	}, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.ID == "" {
		t.Error("expected an assigned ID")
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), meta.Size)
	}
	if meta.Hash == "" {
		t.Error("expected content hash")
	}
	if !strings.HasPrefix(meta.URL, "/api/v1/chat/attachments/") {
		t.Errorf("unexpected URL: %s", meta.URL)
	}

	rc, got, err := store.Download(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, content) {
		t.Error("downloaded content does not match upload")
	}
	if got.FileName != "scan.png" {
		t.Errorf("expected file name scan.png, got %s", got.FileName)
	}
}

func TestUploadRejectsOversized(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    "big.pdf",
		ContentType: "application/pdf",
	}, bytes.NewReader(make([]byte, 2048)))

	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUploadRejectsContentType(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    "script.sh",
		ContentType: "application/x-sh",
	}, strings.NewReader("#!/bin/sh"))

	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestUploadRequiresFileName(t *testing.T) {
	store := newTestStore()

	_, err := store.Upload(context.Background(), BlobMetadata{
		ContentType: "image/png",
	}, strings.NewReader("x"))

	if !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
}

func TestDownloadUnknownID(t *testing.T) {
	store := newTestStore()

	_, _, err := store.Download(context.Background(), "missing")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore()

	meta, _ := store.Upload(context.Background(), BlobMetadata{
		FileName:    "a.png",
		ContentType: "image/png",
	}, strings.NewReader("x"))

	if err := store.Delete(context.Background(), meta.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := store.Download(context.Background(), meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Error("expected blob gone after delete")
	}
	if err := store.Delete(context.Background(), meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Error("expected second delete to report not found")
	}
}
