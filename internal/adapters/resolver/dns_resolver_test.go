package resolver

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/core"
)

// startServer runs a local DNS server answering TXT queries for example.com
// and returns its address and a query counter.
func startServer(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	var queries atomic.Int32
	mux := dns.NewServeMux()
	mux.HandleFunc("example.com.", func(w dns.ResponseWriter, req *dns.Msg) {
		queries.Add(1)
		m := new(dns.Msg)
		m.SetReply(req)

		name := req.Question[0].Name
		hdr := dns.RR_Header{Name: name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 300}
		switch name {
		case "example.com.":
			m.Answer = append(m.Answer,
				&dns.TXT{Hdr: hdr, Txt: []string{"v=spf1 include:_spf.example.com ", "-all"}},
				&dns.TXT{Hdr: hdr, Txt: []string{"site-verification=abc"}},
			)
		case "_dmarc.example.com.":
			m.Answer = append(m.Answer, &dns.TXT{Hdr: hdr, Txt: []string{"v=DMARC1; p=reject"}})
		case "broken.example.com.":
			m.SetRcode(req, dns.RcodeServerFailure)
		default:
			m.SetRcode(req, dns.RcodeNameError)
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String(), &queries
}

func TestLookupTXT(t *testing.T) {
	addr, _ := startServer(t)
	r, err := NewDNSResolver(addr, 2*time.Second, 0, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		want    []string
		wantErr bool
	}{
		{"example.com", []string{"v=spf1 include:_spf.example.com -all", "site-verification=abc"}, false},
		{"_dmarc.EXAMPLE.com.", []string{"v=DMARC1; p=reject"}, false},
		{"missing.example.com", []string{}, false},
		{"broken.example.com", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.LookupTXT(ctx, tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestLookupTXTCache(t *testing.T) {
	addr, queries := startServer(t)
	r, err := NewDNSResolver(addr, 2*time.Second, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := r.LookupTXT(context.Background(), "example.com")
		if err != nil {
			t.Fatal(err)
		}
		got[0] = "mutated"
	}
	if n := queries.Load(); n != 1 {
		t.Errorf("queries = %d, want 1", n)
	}

	got, _ := r.LookupTXT(context.Background(), "example.com")
	if got[0] == "mutated" {
		t.Error("cached records were modified through a returned slice")
	}
}

func TestLookupTXTUnreachable(t *testing.T) {
	r, err := NewDNSResolver("127.0.0.1:1", 200*time.Millisecond, 0, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.LookupTXT(context.Background(), "example.com"); err == nil {
		t.Error("expected an error from an unreachable server")
	}
}

func TestNoopResolver(t *testing.T) {
	_, err := NoopResolver{}.LookupTXT(context.Background(), "example.com")
	if !errors.Is(err, core.ErrLookupsDisabled) {
		t.Errorf("err = %v", err)
	}
}
