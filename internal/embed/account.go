package embed

import (
	"fmt"

	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

// Account is a Mastodon-compatible account document.
type Account struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	Username        string  `json:"username"`
	Acct            string  `json:"acct"`
	URL             string  `json:"url"`
	Note            string  `json:"note"`
	CreatedAt       string  `json:"created_at"`
	Locked          bool    `json:"locked"`
	Bot             bool    `json:"bot"`
	Discoverable    bool    `json:"discoverable"`
	Indexable       bool    `json:"indexable"`
	Group           bool    `json:"group"`
	Avatar          string  `json:"avatar"`
	AvatarStatic    string  `json:"avatar_static"`
	Header          *string `json:"header"`
	HeaderStatic    *string `json:"header_static"`
	FollowersCount  int64   `json:"followers_count"`
	FollowingCount  int64   `json:"following_count"`
	StatusesCount   int64   `json:"statuses_count"`
	HideCollections bool    `json:"hide_collections"`
	Noindex         bool    `json:"noindex"`
	Emojis          []any   `json:"emojis"`
	Roles           []any   `json:"roles"`
	Fields          []Field `json:"fields"`
}

// Field is a name/value pair shown on the account card.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func newAccount(u *tiktok.DetailUser, opts Options) Account {
	name := u.Nickname
	if u.Verified {
		name += " ☑️"
	}
	avatar := opts.offload("/generate/pfp/" + u.ID)
	return Account{
		ID:           u.UniqueID,
		DisplayName:  name,
		Username:     u.UniqueID,
		Acct:         u.UniqueID,
		URL:          "https://tiktok.com/@" + u.UniqueID,
		CreatedAt:    isoTime(int64(u.CreateTime)),
		Discoverable: true,
		Avatar:       avatar,
		AvatarStatic: avatar,
		Emojis:       []any{},
		Roles:        []any{},
		Fields:       []Field{},
	}
}

// ProfileSummary is the one-line stats headline of a profile card.
func ProfileSummary(stats *tiktok.UserStats) string {
	return fmt.Sprintf("👥 %s ❤️ %s 🎥 %s",
		FormatNumber(int64(stats.FollowerCount)),
		FormatNumber(int64(stats.HeartCount)),
		FormatNumber(int64(stats.VideoCount)),
	)
}

// AccountFor builds the account document of a profile.
func AccountFor(info *tiktok.UserInfo, opts Options) *Account {
	a := newAccount(&info.User, opts)
	a.Note = info.User.Signature
	a.FollowersCount = int64(info.Stats.FollowerCount)
	a.FollowingCount = int64(info.Stats.FollowingCount)
	a.StatusesCount = int64(info.Stats.VideoCount)
	a.Fields = []Field{{Name: "Stats", Value: ProfileSummary(&info.Stats)}}
	return &a
}
