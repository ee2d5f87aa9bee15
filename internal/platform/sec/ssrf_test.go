// Copyright (c) 2026 MangaTrack. All rights reserved.

package sec_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/sec"
)

// fixtureResolver maps hostnames to fixed addresses for tests.
type fixtureResolver struct {
	hosts map[string][]net.IP
}

func (r *fixtureResolver) LookupIP(_ context.Context, _, host string) ([]net.IP, error) {
	ips, ok := r.hosts[host]
	if !ok {
		return nil, fmt.Errorf("no such host: %s", host)
	}
	return ips, nil
}

/*
TestSSRFGuard_CheckURL covers scheme filtering, literal addresses, and
resolver-backed host checks including the mixed-record rebinding case.
*/
func TestSSRFGuard_CheckURL(t *testing.T) {
	resolver := &fixtureResolver{hosts: map[string][]net.IP{
		"public.example":   {net.ParseIP("93.184.216.34")},
		"internal.example": {net.ParseIP("10.0.0.5")},
		"mixed.example":    {net.ParseIP("93.184.216.34"), net.ParseIP("192.168.1.1")},
	}}
	guard := sec.NewSSRFGuard(resolver)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public_host", "https://public.example/title/1", false},
		{"private_host", "https://internal.example/x", true},
		{"mixed_records_rejected", "https://mixed.example/x", true},
		{"unknown_host", "https://nxdomain.example/x", true},
		{"literal_public_ip", "http://93.184.216.34/x", false},
		{"literal_loopback", "http://127.0.0.1/x", true},
		{"literal_private", "http://192.168.0.10/x", true},
		{"literal_link_local", "http://169.254.169.254/meta", true},
		{"literal_unspecified", "http://0.0.0.0/x", true},
		{"ftp_scheme", "ftp://public.example/x", true},
		{"file_scheme", "file:///etc/passwd", true},
		{"no_host", "https:///path", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.CheckURL(context.Background(), tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
