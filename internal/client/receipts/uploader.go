// Package receipts attaches receipt images to expenses. The image itself
// goes straight to object storage through a presigned URL; only the storage
// key travels through the sync protocol, on the expense document.
package receipts

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/client/models"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/filex"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// Presigner hands out presigned upload URLs. The server owns the key layout.
type Presigner interface {
	PresignReceipt(ctx context.Context) (key, putURL string, err error)
}

type Uploader struct {
	store    *store.Store
	remote   Presigner
	http     *http.Client
	log      logging.Logger
	maxBytes int64
}

const defaultMaxBytes = 10 << 20

func NewUploader(s *store.Store, remote Presigner, log logging.Logger) *Uploader {
	return &Uploader{
		store:    s,
		remote:   remote,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log,
		maxBytes: defaultMaxBytes,
	}
}

// Attach uploads the file at path and records its storage key on the
// expense. The expense keeps its previous key if the upload fails.
func (u *Uploader) Attach(ctx context.Context, ownerID, expenseID, path string) (string, error) {
	if _, err := u.store.Expenses().Get(ctx, ownerID, expenseID); err != nil {
		return "", err
	}

	size, err := filex.CheckFile(path, u.maxBytes)
	if err != nil {
		return "", err
	}

	key, putURL, err := u.remote.PresignReceipt(ctx)
	if err != nil {
		return "", fmt.Errorf("presign error: %w", err)
	}

	if err := u.put(ctx, putURL, path, size); err != nil {
		return "", err
	}

	_, err = u.store.Expenses().Update(ctx, ownerID, expenseID, func(e *models.Expense) error {
		e.ReceiptKey = key
		return nil
	})
	if err != nil {
		return "", err
	}

	u.log.Info(ctx, "receipt attached", "expense_id", expenseID, "key", key)
	return key, nil
}

func (u *Uploader) put(ctx context.Context, putURL, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected: %s", resp.Status)
	}
	return nil
}
