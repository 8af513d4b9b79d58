package tiktok

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Int64 decodes a JSON number or a numeric string. The origin is not
// consistent about which one it emits for sizes, counts and timestamps.
// Empty strings and null decode to zero.
type Int64 int64

func (n *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*n = Int64(v)
	return nil
}

// rehydrationPayload is the document embedded in __UNIVERSAL_DATA_FOR_REHYDRATION__.
type rehydrationPayload struct {
	DefaultScope map[string]json.RawMessage `json:"__DEFAULT_SCOPE__"`
}

// scopeStatus is decoded first from any scope object to validate it.
type scopeStatus struct {
	StatusCode int `json:"statusCode"`
}

// VideoDetail is the webapp.video-detail scope.
type VideoDetail struct {
	StatusCode int    `json:"statusCode"`
	StatusMsg  string `json:"statusMsg,omitempty"`
	ItemInfo   struct {
		ItemStruct ItemStruct `json:"itemStruct"`
	} `json:"itemInfo"`
}

// UserDetail is the webapp.user-detail scope.
type UserDetail struct {
	StatusCode int       `json:"statusCode"`
	StatusMsg  string    `json:"statusMsg,omitempty"`
	UserInfo   *UserInfo `json:"userInfo,omitempty"`
}

// UserInfo is a profile: identity plus aggregate stats.
type UserInfo struct {
	User  DetailUser `json:"user"`
	Stats UserStats  `json:"stats"`
}

// DetailUser identifies an account. Avatar fields are listed in preference order.
type DetailUser struct {
	ID           string `json:"id"`
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname"`
	AvatarMedium string `json:"avatarMedium,omitempty"`
	AvatarLarger string `json:"avatarLarger,omitempty"`
	AvatarThumb  string `json:"avatarThumb,omitempty"`
	Signature    string `json:"signature,omitempty"`
	Verified     bool   `json:"verified"`
	PrivateAcct  bool   `json:"privateAccount,omitempty"`
	CreateTime   Int64  `json:"createTime"`
}

// Avatar returns the best available avatar URL.
func (u *DetailUser) Avatar() string {
	for _, a := range []string{u.AvatarMedium, u.AvatarLarger, u.AvatarThumb} {
		if a != "" {
			return a
		}
	}
	return ""
}

// UserStats are profile-level counters.
type UserStats struct {
	FollowerCount  Int64 `json:"followerCount"`
	FollowingCount Int64 `json:"followingCount"`
	HeartCount     Int64 `json:"heartCount"`
	VideoCount     Int64 `json:"videoCount"`
	DiggCount      Int64 `json:"diggCount"`
}

// ItemStruct is a single post: either a video or an image post.
type ItemStruct struct {
	ID          string      `json:"id"`
	Desc        string      `json:"desc"`
	CreateTime  Int64       `json:"createTime"`
	Author      DetailUser  `json:"author"`
	Video       Video       `json:"video"`
	ImagePost   *ImagePost  `json:"imagePost,omitempty"`
	Stats       ItemStats   `json:"stats"`
	AuthorStats UserStats   `json:"authorStats"`
	Contents    []Content   `json:"contents,omitempty"`
	TextExtra   []TextExtra `json:"textExtra,omitempty"`
}

// HasImages reports whether the post carries a first-party image list.
func (it *ItemStruct) HasImages() bool {
	return it.ImagePost != nil && len(it.ImagePost.Images) > 0
}

// ItemStats are per-post counters.
type ItemStats struct {
	DiggCount    Int64 `json:"diggCount"`
	ShareCount   Int64 `json:"shareCount"`
	CommentCount Int64 `json:"commentCount"`
	PlayCount    Int64 `json:"playCount"`
	CollectCount Int64 `json:"collectCount"`
}

// Video describes the playable renditions of a post.
type Video struct {
	ID             string        `json:"id"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	Duration       int           `json:"duration"`
	Cover          string        `json:"cover"`
	OriginCover    string        `json:"originCover"`
	PlayAddr       string        `json:"playAddr"`
	PlayAddrStruct *PlayAddr     `json:"PlayAddrStruct,omitempty"`
	BitrateInfo    []BitrateInfo `json:"bitrateInfo,omitempty"`
}

// BitrateInfo is one encoded rendition. The order of PlayAddr.URLList is
// not meaningful.
type BitrateInfo struct {
	Bitrate     Int64     `json:"Bitrate"`
	CodecType   string    `json:"CodecType"`
	GearName    string    `json:"GearName"`
	QualityType int       `json:"QualityType"`
	PlayAddr    *PlayAddr `json:"PlayAddr,omitempty"`
}

// PlayAddr is a set of candidate URLs for one rendition.
type PlayAddr struct {
	DataSize Int64    `json:"DataSize"`
	Width    int      `json:"Width"`
	Height   int      `json:"Height"`
	URI      string   `json:"Uri"`
	URLList  []string `json:"UrlList"`
}

// ImagePost is a slideshow post.
type ImagePost struct {
	Title  string  `json:"title"`
	Cover  *Image  `json:"cover,omitempty"`
	Images []Image `json:"images"`
}

// Image is one slide of an image post.
type Image struct {
	ImageURL struct {
		URLList []string `json:"urlList"`
	} `json:"imageURL"`
	ImageWidth  int `json:"imageWidth"`
	ImageHeight int `json:"imageHeight"`
}

// URL returns the first candidate URL of the image, or "".
func (im *Image) URL() string {
	if len(im.ImageURL.URLList) == 0 {
		return ""
	}
	return im.ImageURL.URLList[0]
}

// Content is one description block with ranged annotations.
type Content struct {
	Desc      string      `json:"desc"`
	TextExtra []TextExtra `json:"textExtra,omitempty"`
}

// TextExtra annotates Desc[Start:End]. Type 0 is a mention, type 1 a hashtag.
type TextExtra struct {
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Type         int    `json:"type"`
	HashtagName  string `json:"hashtagName,omitempty"`
	UserID       string `json:"userId,omitempty"`
	UserUniqueID string `json:"userUniqueId,omitempty"`
}

// Annotation types of TextExtra.
const (
	TextExtraMention = 0
	TextExtraHashtag = 1
)

// livePayload is the document embedded in SIGI_STATE on live pages.
type livePayload struct {
	LiveRoom *LiveRoom `json:"LiveRoom"`
}

// LiveRoom is the live section of an account's live page.
type LiveRoom struct {
	UserInfo LiveRoomUserInfo `json:"liveRoomUserInfo"`
}

type LiveRoomUserInfo struct {
	User     LiveUser   `json:"user"`
	LiveRoom LiveDetail `json:"liveRoom"`
}

// LiveUser is the broadcaster. RoomID is empty when the account has never
// gone live.
type LiveUser struct {
	ID           string `json:"id"`
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname"`
	AvatarLarger string `json:"avatarLarger,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
	Status       int    `json:"status"`
}

type LiveDetail struct {
	Title     string    `json:"title"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	StartTime Int64     `json:"startTime"`
	Status    int       `json:"status"`
	Stats     LiveStats `json:"liveRoomStats"`
}

type LiveStats struct {
	UserCount  Int64 `json:"userCount"`
	EnterCount Int64 `json:"enterCount"`
}

// liveStatusOnAir is LiveDetail.Status while a broadcast is running.
const liveStatusOnAir = 2

// OnAir reports whether the room is broadcasting.
func (r *LiveRoom) OnAir() bool {
	return r.UserInfo.LiveRoom.Status == liveStatusOnAir
}
