package embed

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

const maxImageAttachments = 4

// Options shape the generated documents.
type Options struct {
	OffloadURL       string // public base of the /generate routes
	HQ               bool   // link the hq video rendition
	ForceDescription bool   // keep the description on video posts
}

func (o Options) offload(path string) string {
	return strings.TrimRight(o.OffloadURL, "/") + path
}

// Status is a Mastodon-compatible status document.
type Status struct {
	ID               string       `json:"id"`
	URL              string       `json:"url"`
	URI              string       `json:"uri"`
	CreatedAt        string       `json:"created_at"`
	Content          string       `json:"content"`
	SpoilerText      string       `json:"spoiler_text"`
	Language         *string      `json:"language"`
	Visibility       string       `json:"visibility"`
	Application      Application  `json:"application"`
	MediaAttachments []Attachment `json:"media_attachments"`
	Account          Account      `json:"account"`
	Mentions         []any        `json:"mentions"`
	Tags             []any        `json:"tags"`
	Emojis           []any        `json:"emojis"`
	Card             any          `json:"card"`
	Poll             any          `json:"poll"`
}

type Application struct {
	Name    string `json:"name"`
	Website string `json:"website"`
}

// Attachment is one media item of a status.
type Attachment struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"` // video or image
	URL              string    `json:"url"`
	PreviewURL       string    `json:"preview_url"`
	RemoteURL        *string   `json:"remote_url"`
	PreviewRemoteURL *string   `json:"preview_remote_url"`
	TextURL          *string   `json:"text_url"`
	Description      *string   `json:"description"`
	Meta             MediaMeta `json:"meta"`
}

type MediaMeta struct {
	Original Dimensions `json:"original"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var fxApplication = Application{Name: "fxTikTok", Website: "https://github.com/okdargy/fxTikTok"}

// StatusParam splits a status route parameter such as "7311111111111111111hq"
// into the numeric id and its inline flags.
func StatusParam(param string) (id string, hq, forceDescription bool) {
	id = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, param)
	return id, strings.Contains(param, "hq"), strings.Contains(param, "desc")
}

// Activity builds the status document for a post. Video posts carry one
// video attachment and, unless forced, no description; image posts carry
// up to four images.
func Activity(item *tiktok.ItemStruct, videoID string, opts Options) *Status {
	desc := Description(item) + "<br><br>"
	media := make([]Attachment, 0, 1)

	if item.Video.PlayAddr != "" {
		videoURL := opts.offload("/generate/video/" + videoID)
		if opts.HQ {
			videoURL += "?hq=true"
		}
		media = append(media, Attachment{
			ID:         videoID + "-video",
			Type:       "video",
			URL:        videoURL,
			PreviewURL: opts.offload("/generate/cover/" + videoID),
			Meta:       MediaMeta{Original: Dimensions{Width: item.Video.Width, Height: item.Video.Height}},
		})
		if !opts.ForceDescription {
			desc = ""
		}
	}

	if item.HasImages() {
		images := item.ImagePost.Images
		n := min(len(images), maxImageAttachments)
		for i := 0; i < n; i++ {
			imageURL := opts.offload(fmt.Sprintf("/generate/image/%s/%d", videoID, i+1))
			a := Attachment{
				ID:         fmt.Sprintf("%s-image-%d", videoID, i),
				Type:       "image",
				URL:        imageURL,
				PreviewURL: imageURL + "?preview=true",
				Meta:       MediaMeta{Original: Dimensions{Width: images[i].ImageWidth, Height: images[i].ImageHeight}},
			}
			if len(images) > maxImageAttachments {
				d := fmt.Sprintf("Image (%d of %d)", i+1, len(images))
				a.Description = &d
			}
			media = append(media, a)
		}
	}

	postURL := "https://tiktok.com/@" + item.Author.UniqueID + "/video/" + videoID
	content := desc + fmt.Sprintf("<b>❤️ %s 💬 %s 🔁 %s</b>",
		FormatNumber(int64(item.Stats.DiggCount)),
		FormatNumber(int64(item.Stats.CommentCount)),
		FormatNumber(int64(item.Stats.ShareCount)),
	)

	account := newAccount(&item.Author, opts)
	account.FollowersCount = int64(item.AuthorStats.FollowerCount)
	account.FollowingCount = int64(item.AuthorStats.FollowingCount)

	return &Status{
		ID:               videoID,
		URL:              postURL,
		URI:              postURL,
		CreatedAt:        isoTime(int64(item.CreateTime)),
		Content:          content,
		Visibility:       "public",
		Application:      fxApplication,
		MediaAttachments: media,
		Account:          account,
		Mentions:         []any{},
		Tags:             []any{},
		Emojis:           []any{},
	}
}
