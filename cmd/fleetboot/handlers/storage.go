package handlers

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"
)

// readFile reads a local file (for testing injection).
var readFile = os.ReadFile

func openStore(ctx context.Context, g Globals) (ObjectStore, string, error) {
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	store, err := newObjectStore(ctx, storageOptions(cfg))
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Storage.ReportBucket, nil
}

// CreateBucket creates a bucket. An existing bucket owned by the caller is
// not an error.
func CreateBucket(ctx context.Context, g Globals, bucket string) error {
	store, _, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	if err := store.CreateBucket(ctx, bucket); err != nil {
		return err
	}
	log.Printf("Bucket %s ready", bucket)
	return nil
}

// ListObjects prints the objects of a bucket below prefix.
func ListObjects(ctx context.Context, g Globals, bucket, prefix string) error {
	store, _, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	objects, err := store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, o := range objects {
		fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// Upload stores a local file under key. An empty key uses the file name.
func Upload(ctx context.Context, g Globals, bucket, file, key string) error {
	if key == "" {
		key = filepath.Base(file)
	}
	data, err := readFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	store, _, err := openStore(ctx, g)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := store.PutObject(ctx, bucket, key, data, contentType); err != nil {
		return err
	}
	log.Printf("Uploaded %s to s3://%s/%s", file, bucket, key)
	return nil
}

// Download fetches key into dest. A dest of "-" writes to stdout; an empty
// dest uses the base name of key.
func Download(ctx context.Context, g Globals, bucket, key, dest string) error {
	store, _, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	data, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}

	if dest == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if dest == "" {
		dest = filepath.Base(key)
	}
	if err := writeFile(dest, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	log.Printf("Downloaded s3://%s/%s to %s", bucket, key, dest)
	return nil
}

// Delete removes key from bucket, or the bucket itself when key is empty.
func Delete(ctx context.Context, g Globals, bucket, key string) error {
	store, _, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	if key == "" {
		if err := store.DeleteBucket(ctx, bucket); err != nil {
			return err
		}
		log.Printf("Deleted bucket %s", bucket)
		return nil
	}
	if err := store.DeleteObject(ctx, bucket, key); err != nil {
		return err
	}
	log.Printf("Deleted s3://%s/%s", bucket, key)
	return nil
}

// ListRuns prints the run IDs archived in bucket, defaulting to the
// configured report bucket.
func ListRuns(ctx context.Context, g Globals, bucket string) error {
	store, reportBucket, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	if bucket == "" {
		bucket = reportBucket
	}
	if bucket == "" {
		return fmt.Errorf("no bucket given and storage.report_bucket is not set")
	}

	runs, err := store.ListRuns(ctx, bucket)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintln(stdout, r)
	}
	return nil
}
