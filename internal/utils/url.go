package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"ticketbot/internal/ticket"
)

var urlRegex = regexp.MustCompile(`https?://[^\s<>]+`)

var DefaultProofHosts = []string{
	"imgur.com",
	"i.imgur.com",
	"gyazo.com",
	"prnt.sc",
	"streamable.com",
	"medal.tv",
	"youtube.com",
	"youtu.be",
	"cdn.discordapp.com",
	"media.discordapp.net",
}

var mediaExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".mp4": {}, ".mov": {}, ".webm": {}, ".mkv": {},
}

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

func NormalizeHost(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	return host, nil
}

func HostSet(hosts ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range hosts {
		for _, host := range list {
			if normalized, err := NormalizeHost(host); err == nil && normalized != "" {
				set[normalized] = struct{}{}
			}
		}
	}
	return set
}

// HostMatch reports whether host or one of its parent domains is in the set.
func HostMatch(host string, set map[string]struct{}) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := set[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
	return false
}

func IsMediaAttachment(a ticket.Attachment) bool {
	contentType := strings.ToLower(a.ContentType)
	if strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/") {
		return true
	}
	_, ok := mediaExtensions[strings.ToLower(path.Ext(a.Filename))]
	return ok
}

func DetectProof(content string, attachments []ticket.Attachment, hosts map[string]struct{}) bool {
	for _, a := range attachments {
		if IsMediaAttachment(a) {
			return true
		}
	}
	for _, raw := range ExtractURLs(content) {
		host, err := NormalizeHost(raw)
		if err != nil {
			continue
		}
		if HostMatch(host, hosts) {
			return true
		}
		if parsed, err := url.Parse(raw); err == nil {
			if _, ok := mediaExtensions[strings.ToLower(path.Ext(parsed.Path))]; ok {
				return true
			}
		}
	}
	return false
}
