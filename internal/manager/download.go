package manager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overlayd/internal/common/fsutil"
)

// ggufMagic is the first four bytes of every GGUF model file.
var ggufMagic = []byte("GGUF")

// Fetcher opens a download stream. size is -1 when unknown.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)
}

type httpFetcher struct{ cli *http.Client }

// NewHTTPFetcher returns a Fetcher over cli (http.DefaultClient when nil).
func NewHTTPFetcher(cli *http.Client) Fetcher {
	if cli == nil {
		cli = http.DefaultClient
	}
	return httpFetcher{cli: cli}
}

func (f httpFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.cli.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, 0, fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return resp.Body, resp.ContentLength, nil
}

// download fetches the configured model into the models directory. The file
// is written as <id>.part, verified, then renamed into place; any failure
// removes the partial file.
func (m *Manager) download(ctx context.Context, op string) (string, error) {
	dir, err := fsutil.EnsureDir(m.cfg.ModelsDir)
	if err != nil {
		return "", err
	}
	final := filepath.Join(dir, m.cfg.ModelID)
	part := final + ".part"

	var lastErr error
	for attempt := 1; attempt <= m.cfg.DownloadAttempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(m.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				_ = fsutil.RemoveIfExists(part)
				return "", ctx.Err()
			case <-t.C:
			}
		}
		lastErr = m.fetchOnce(ctx, op, part)
		if lastErr == nil {
			lastErr = verifyModelFile(part, m.cfg.ModelSizeBytes, m.cfg.ModelSHA256)
		}
		if lastErr == nil {
			if err := os.Rename(part, final); err != nil {
				lastErr = fmt.Errorf("rename: %w", err)
			} else {
				return final, nil
			}
		}
		_ = fsutil.RemoveIfExists(part)
		m.log.Warn().Str("event", "download_attempt_failed").Str("op_id", op).Int("attempt", attempt).Err(lastErr).Msg("download attempt failed")
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (m *Manager) fetchOnce(ctx context.Context, op, part string) error {
	body, size, err := m.fetcher.Fetch(ctx, m.cfg.ModelURL)
	if err != nil {
		return err
	}
	defer body.Close()
	if size <= 0 && m.cfg.ModelSizeBytes > 0 {
		size = m.cfg.ModelSizeBytes
	}
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	pw := &progressWriter{total: size, report: func(p float64) { m.reportProgress(op, p) }}
	_, err = io.Copy(io.MultiWriter(f, pw), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// progressWriter reports each whole percent of progress once.
type progressWriter struct {
	total   int64
	written int64
	lastPct int
	report  func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := int(p.written * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.lastPct {
			p.lastPct = pct
			p.report(float64(pct) / 100)
		}
	}
	return len(b), nil
}

// verifyModelFile checks that path looks like a complete GGUF model.
func verifyModelFile(path string, wantSize int64, wantSHA string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("verify: empty file")
	}
	if wantSize > 0 && info.Size() != wantSize {
		return fmt.Errorf("verify: size %d, want %d", info.Size(), wantSize)
	}
	head := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, ggufMagic) {
		return errors.New("verify: not a GGUF file")
	}
	if wantSHA == "" {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, wantSHA) {
		return fmt.Errorf("verify: sha256 %s, want %s", got, wantSHA)
	}
	return nil
}
