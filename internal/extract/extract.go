// Package extract finds legacy SwitchCast/SWITCHtube video URLs inside
// arbitrary text and recovers the stable identifiers needed to look the
// videos up on the Kaltura side.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultHosts is the allow-list of legacy video hosts searched by
// default. The download host only ever appears in player deep links.
var DefaultHosts = []string{
	"tube.switch.ch",
	"cast.switch.ch",
	"download.cast.switch.ch",
}

const (
	// downloadHost URLs are kept only when they match the
	// switchcast-player deep-link shape; everything else on that host
	// is a plain file download, not an embedding.
	downloadHost = "download.cast.switch.ch"

	// scriptEmbedPath is the generic player script whose URL alone
	// carries no media identifier.
	scriptEmbedPath = "/embed/js"

	// scriptEmbedLookahead bounds how far after the script URL the
	// data-video marker may appear.
	scriptEmbedLookahead = 512
)

var (
	uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

	reTwoUUIDs   = regexp.MustCompile(`/(` + uuidPattern + `)/(` + uuidPattern + `)`)
	reOneUUID    = regexp.MustCompile(`/(` + uuidPattern + `)`)
	reShortCode  = regexp.MustCompile(`/([0-9a-zA-Z]{8,10})([?#]|$)`)
	reEntryQuery = regexp.MustCompile(`[?&]entry_id=([0-9a-zA-Z_]+)`)
	reEntryPath  = regexp.MustCompile(`/entryId/([0-9a-zA-Z_]+)`)
	reChannel    = regexp.MustCompile(`/channels/([0-9a-zA-Z]+)`)
	reDeepLink   = regexp.MustCompile(`/switchcast-player/` + uuidPattern + `/` + uuidPattern + `/`)
	reDataVideo  = regexp.MustCompile(`data-video\s*=\s*"([0-9a-zA-Z]+)"`)

	// Entity-shaped tails swallowed by the permissive URL character
	// class, eg a URL captured out of escaped HTML.
	reEntityTail = regexp.MustCompile(`(&[a-zA-Z]{2,6};?|&#[0-9]+;?)$`)
)

// Extractor scans text for URLs on a fixed set of legacy hosts.
type Extractor struct {
	hosts []string
	reURL *regexp.Regexp
}

// New builds an Extractor for the given host allow-list. An empty list
// falls back to DefaultHosts.
func New(hosts []string) *Extractor {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	quoted := make([]string, len(hosts))
	for i, h := range hosts {
		quoted[i] = regexp.QuoteMeta(h)
	}
	chars := `[a-zA-Z0-9:;&#@=_~%?/.,+\-]`
	pattern := fmt.Sprintf(`https?://(%s)/%s+`, strings.Join(quoted, "|"), chars)
	return &Extractor{
		hosts: hosts,
		reURL: regexp.MustCompile(pattern),
	}
}

// Hosts returns the configured allow-list.
func (e *Extractor) Hosts() []string {
	return e.hosts
}

// ExtractURLs returns the distinct legacy video URLs found in text, in
// first-seen order. Script-embed URLs without an adjacent data-video
// marker and non-player download-host URLs are dropped as unusable.
func (e *Extractor) ExtractURLs(text string) []string {
	matches := e.reURL.FindAllStringIndex(text, -1)
	if matches == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, loc := range matches {
		url := stripEntityTail(text[loc[0]:loc[1]])

		if strings.Contains(url, "://"+downloadHost+"/") && !reDeepLink.MatchString(url) {
			continue
		}
		if isScriptEmbed(url) {
			id, ok := adjacentVideoID(text, loc[1])
			if !ok {
				continue
			}
			url = url + "?video=" + id
		}

		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	return urls
}

// ReferenceIDsFromURL recovers the lookup identifiers from a URL shape,
// trying patterns in priority order: two consecutive UUID path segments,
// a single UUID segment, then a short 8-10 character share code. The
// boolean is false when no pattern matches.
func ReferenceIDsFromURL(url string) ([]string, bool) {
	if m := reTwoUUIDs.FindStringSubmatch(url); m != nil {
		if isUUID(m[1]) && isUUID(m[2]) {
			return []string{m[1], m[2]}, true
		}
	}
	if m := reOneUUID.FindStringSubmatch(url); m != nil {
		if isUUID(m[1]) {
			return []string{m[1]}, true
		}
	}
	if m := reShortCode.FindStringSubmatch(url); m != nil {
		return []string{m[1]}, true
	}
	return nil, false
}

// EntryIDFromURL extracts a Kaltura entry id carried directly in a URL:
// either an entry_id query parameter or an /entryId/ path segment.
func EntryIDFromURL(url string) (string, bool) {
	if m := reEntryQuery.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	if m := reEntryPath.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	return "", false
}

// ChannelCodeFromURL returns the channel share code for channel-shaped
// URLs. Channels resolve to categories, not media entries.
func ChannelCodeFromURL(url string) (string, bool) {
	if m := reChannel.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	return "", false
}

func isScriptEmbed(url string) bool {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.HasSuffix(trimmed, scriptEmbedPath)
}

// adjacentVideoID looks ahead from the end of a script-embed URL for the
// data-video attribute carrying the real identifier.
func adjacentVideoID(text string, from int) (string, bool) {
	to := from + scriptEmbedLookahead
	if to > len(text) {
		to = len(text)
	}
	if m := reDataVideo.FindStringSubmatch(text[from:to]); m != nil {
		return m[1], true
	}
	return "", false
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func stripEntityTail(url string) string {
	for {
		stripped := reEntityTail.ReplaceAllString(url, "")
		if stripped == url {
			return url
		}
		url = stripped
	}
}
