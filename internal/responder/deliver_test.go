package responder

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/argo/internal/wire"
)

func TestHTTPDelivererSuccess(t *testing.T) {
	var gotType, gotAgent, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotType = r.Header.Get("Content-Type")
		gotAgent = r.Header.Get("User-Agent")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(time.Second)
	if err := d.Deliver(context.Background(), srv.URL+"/response", wire.ContentTypeXML, []byte("<cache/>")); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotType != wire.ContentTypeXML || gotBody != "<cache/>" {
		t.Errorf("listener saw %q %q", gotType, gotBody)
	}
	if !strings.HasPrefix(gotAgent, "argo/") {
		t.Errorf("User-Agent = %q", gotAgent)
	}
}

func TestHTTPDelivererFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	refusedURL := "http://" + ln.Addr().String() + "/response"
	ln.Close()

	tests := []struct {
		name       string
		url        string
		wantKind   DeliveryKind
		wantStatus int
	}{
		{name: "server error", url: failing.URL, wantKind: DeliveryHTTPStatus, wantStatus: http.StatusInternalServerError},
		{name: "slow listener", url: slow.URL, wantKind: DeliveryTimeout},
		{name: "nothing listening", url: refusedURL, wantKind: DeliveryRefused},
	}

	d := NewHTTPDeliverer(100 * time.Millisecond)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Deliver(context.Background(), tt.url, wire.ContentTypeJSON, []byte("{}"))
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("Deliver() error = %v, want DeliveryError", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s (%v)", de.Kind, tt.wantKind, err)
			}
			if de.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", de.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DeliveryKind
	}{
		{name: "dns", err: &net.DNSError{Name: "nowhere.invalid", Err: "no such host"}, want: DeliveryDNS},
		{name: "deadline", err: context.DeadlineExceeded, want: DeliveryTimeout},
		{name: "other", err: errors.New("broken pipe"), want: DeliveryNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err, "http://x/").Kind; got != tt.want {
				t.Errorf("classify() = %s, want %s", got, tt.want)
			}
		})
	}
	if classify(nil, "") != nil {
		t.Error("classify(nil) should be nil")
	}
}
