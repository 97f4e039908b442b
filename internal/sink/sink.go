// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sink writes output files to a local path or to a Google
// Cloud Storage object.
//
// A destination of the form gs://bucket/object names a Cloud Storage
// object; anything else is a local path. Output is written whole: a
// local file is written to a temporary name and renamed into place on
// Close, and an object is only created once its upload completes.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Options configures access to remote destinations.
type Options struct {
	// CredentialsFile is a service account key file used for
	// Cloud Storage. If empty, Application Default Credentials are
	// used.
	CredentialsFile string
}

// A Writer is an open destination. Close commits the written data;
// Abort discards it. After either, further calls have no effect.
type Writer interface {
	io.Writer
	Close() error
	Abort()
}

// ParseGCS splits a gs://bucket/object destination. ok is false if
// dest does not start with gs://.
func ParseGCS(dest string) (bucket, object string, ok bool, err error) {
	rest, ok := strings.CutPrefix(dest, "gs://")
	if !ok {
		return "", "", false, nil
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", true, fmt.Errorf("malformed Cloud Storage destination %q, want gs://bucket/object", dest)
	}
	return bucket, object, true, nil
}

// Open opens dest for writing.
func Open(ctx context.Context, dest string, opts Options) (Writer, error) {
	bucket, object, isGCS, err := ParseGCS(dest)
	if err != nil {
		return nil, err
	}
	if isGCS {
		w, err := openGCS(ctx, bucket, object, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	w, err := openFile(dest)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// WriteFile opens dest, calls write, and closes dest. If write fails,
// nothing is written to dest.
func WriteFile(ctx context.Context, dest string, opts Options, write func(io.Writer) error) error {
	w, err := Open(ctx, dest, opts)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

type fileWriter struct {
	f    *os.File
	path string
	done bool
}

func openFile(path string) (*fileWriter, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, err
	}
	return &fileWriter{f: f, path: path}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.f.Close()
	if err == nil {
		err = os.Chmod(w.f.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(w.f.Name(), w.path)
	}
	if err != nil {
		os.Remove(w.f.Name())
	}
	return err
}

func (w *fileWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.f.Close()
	os.Remove(w.f.Name())
}

type gcsWriter struct {
	client *storage.Client
	w      *storage.Writer
	cancel context.CancelFunc
	done   bool
}

func openGCS(ctx context.Context, bucket, object string, opts Options) (*gcsWriter, error) {
	var copts []option.ClientOption
	if opts.CredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("cloud storage client: %w", err)
	}
	// Canceling the writer's context abandons the upload.
	ctx, cancel := context.WithCancel(ctx)
	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(object)
	return &gcsWriter{client: client, w: w, cancel: cancel}, nil
}

func (w *gcsWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *gcsWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.w.Close()
	w.cancel()
	return errors.Join(err, w.client.Close())
}

func (w *gcsWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.cancel()
	w.w.Close()
	w.client.Close()
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
