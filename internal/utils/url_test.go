package utils

import (
	"testing"

	"ticketbot/internal/ticket"
)

func TestNormalizeHost(t *testing.T) {
	host, err := NormalizeHost("https://WWW.Imgur.com/gallery/abc?utm_source=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "imgur.com" {
		t.Fatalf("unexpected host: %s", host)
	}
	host, err = NormalizeHost("bücher.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "xn--bcher-kva.example" {
		t.Fatalf("expected punycode host, got %s", host)
	}
}

func TestHostMatch(t *testing.T) {
	set := HostSet([]string{"imgur.com"})
	if !HostMatch("i.imgur.com", set) {
		t.Fatalf("expected subdomain match")
	}
	if HostMatch("notimgur.com", set) {
		t.Fatalf("expected no match for lookalike domain")
	}
}

func TestDetectProof(t *testing.T) {
	hosts := HostSet(DefaultProofHosts)
	cases := []struct {
		name        string
		content     string
		attachments []ticket.Attachment
		want        bool
	}{
		{name: "image attachment", attachments: []ticket.Attachment{{Filename: "a.bin", ContentType: "image/png"}}, want: true},
		{name: "video by extension", attachments: []ticket.Attachment{{Filename: "clip.MP4"}}, want: true},
		{name: "text attachment", attachments: []ticket.Attachment{{Filename: "log.txt", ContentType: "text/plain"}}, want: false},
		{name: "known host", content: "proof: https://gyazo.com/abc123", want: true},
		{name: "media link", content: "see https://example.org/shot.jpeg", want: true},
		{name: "plain link", content: "see https://example.org/page", want: false},
		{name: "no links", content: "hello", want: false},
	}
	for _, tc := range cases {
		if got := DetectProof(tc.content, tc.attachments, hosts); got != tc.want {
			t.Fatalf("%s: expected %t, got %t", tc.name, tc.want, got)
		}
	}
}
