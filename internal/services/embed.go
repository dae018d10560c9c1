package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/swisscast/kaltura-migration/internal/models"
)

// maxEmbedWidth caps embeds sized from the entry's intrinsic aspect
// ratio when the original markup carried no dimensions.
const maxEmbedWidth = 640

// EmbedBuilder renders the Kaltura-side replacements for legacy
// embeddings: player embed codes, direct playable URLs and MediaSpace
// channel links.
type EmbedBuilder struct {
	ServiceURL    string
	PartnerID     int64
	UIConfID      int64
	KafURI        string
	MediaSpaceURL string
}

// Size resolves the pixel dimensions for an embed: explicit markup
// dimensions win, otherwise the entry's aspect ratio capped at
// maxEmbedWidth.
func (b EmbedBuilder) Size(entry *models.MediaEntry, markupWidth, markupHeight int) (int, int) {
	if markupWidth > 0 && markupHeight > 0 {
		return markupWidth, markupHeight
	}
	width := maxEmbedWidth
	height := int(float64(width) / entry.AspectRatio())
	return width, height
}

// ScriptEmbed renders the self-contained script/div embed with inline
// pixel sizing.
func (b EmbedBuilder) ScriptEmbed(entry *models.MediaEntry, width, height int) string {
	playerID := "kaltura_player_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf(`<script src="%s/p/%d/sp/%d00/embedIframeJs/uiconf_id/%d/partner_id/%d"></script>
<div id="%s" style="width: %dpx; height: %dpx;"></div>
<script>
kWidget.embed({
  "targetId": "%s",
  "wid": "_%d",
  "uiconf_id": %d,
  "flashvars": {},
  "entry_id": "%s"
});
</script>`,
		b.ServiceURL, b.PartnerID, b.PartnerID, b.UIConfID, b.PartnerID,
		playerID, width, height,
		playerID, b.PartnerID, b.UIConfID, entry.ID)
}

// LinkEmbed renders the anchor placeholder the host's Kaltura content
// filter expands client-side. Title, duration and dimensions travel in
// the href so the filter can rebuild the player without another lookup.
func (b EmbedBuilder) LinkEmbed(entry *models.MediaEntry, width, height int) string {
	href := fmt.Sprintf(
		"%s/browseandembed/index/media/entryid/%s/showDescription/false/showTitle/false/showTags/false/showDuration/false/showOwner/false/showUploadDate/false/playerSize/%dx%d/playerSkin/%d",
		strings.TrimRight(b.KafURI, "/"), entry.ID, width, height, b.UIConfID)
	title := entry.Name
	if title == "" {
		title = entry.ID
	}
	return fmt.Sprintf(`<a href="%s" data-media-duration="%d" data-media-width="%d" data-media-height="%d">%s</a>`,
		href, entry.Duration, width, height, title)
}

// Embed renders the replacement for one embedding in the requested
// style.
func (b EmbedBuilder) Embed(style models.EmbedStyle, entry *models.MediaEntry, width, height int) string {
	if style == models.EmbedStyleScript {
		return b.ScriptEmbed(entry, width, height)
	}
	return b.LinkEmbed(entry, width, height)
}

// DirectURL builds the playManifest URL serving the entry as a plain
// mp4, used for leftover literal URLs outside any recognized embedding.
func (b EmbedBuilder) DirectURL(entry *models.MediaEntry) string {
	return fmt.Sprintf("%s/p/%d/sp/%d00/playManifest/entryId/%s/format/url/protocol/https/video.mp4",
		b.ServiceURL, b.PartnerID, b.PartnerID, entry.ID)
}

// ChannelURL builds the MediaSpace address of a migrated channel
// category.
func (b EmbedBuilder) ChannelURL(category *models.Category) string {
	return fmt.Sprintf("%s/channel/%s/%d",
		strings.TrimRight(b.MediaSpaceURL, "/"), url.PathEscape(category.Name), category.ID)
}
