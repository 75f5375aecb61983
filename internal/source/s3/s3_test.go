package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gribidx/internal/source"
)

const key = "gfs.20221215/18/atmos/gfs.t18z.pgrb2.0p25.f001.idx"

const body = "1:0:d=2022121518:PRMSL:mean sea level:1 hour fcst:\n"

// fakeS3 serves a single object at /<bucket>/<key> using path-style addressing.
func fakeS3(t *testing.T, bucket string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous request carried an Authorization header")
		}
		if r.URL.Path != "/"+bucket+"/"+key {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(t *testing.T, endpoint string) *Source {
	t.Helper()
	return newTestSourceWith(t, Config{Bucket: "noaa-gfs-bdp-pds", Endpoint: endpoint})
}

func newTestSourceWith(t *testing.T, cfg Config) *Source {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	cfg.Region = "us-east-1"
	cfg.PathStyle = true
	cfg.Anonymous = true
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestOpen(t *testing.T) {
	srv := fakeS3(t, "noaa-gfs-bdp-pds")
	s := newTestSource(t, srv.URL)

	rc, err := s.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != body {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestOpenNotFound(t *testing.T) {
	srv := fakeS3(t, "noaa-gfs-bdp-pds")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newTestSourceWith(t, Config{Bucket: "noaa-gfs-bdp-pds", Endpoint: srv.URL, Logger: logger})

	missing := strings.Replace(key, "f001", "f002", 1)
	_, err := s.Open(context.Background(), missing)
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(logs.String(), "object not found") || !strings.Contains(logs.String(), "f002") {
		t.Errorf("missing debug log for not-found open:\n%s", logs.String())
	}
}

func TestNewDefaultsBucket(t *testing.T) {
	srv := fakeS3(t, DefaultBucket)
	s := newTestSourceWith(t, Config{Endpoint: srv.URL})
	if s.bucket != DefaultBucket {
		t.Errorf("bucket = %q, want %q", s.bucket, DefaultBucket)
	}
	rc, err := s.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = rc.Close()
}

func TestFactoryRejectsBadBool(t *testing.T) {
	f := NewFactory()
	_, err := f(context.Background(), map[string]string{
		ParamBucket:    "b",
		ParamAnonymous: "sometimes",
	}, nil)
	if err == nil {
		t.Error("expected error for invalid anonymous parameter")
	}
}
