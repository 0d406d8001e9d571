package scrape

// RawComment is one comment as returned by the post scraper.
type RawComment struct {
	Text       string `json:"text"`
	LikesCount int    `json:"likesCount"`
}

// RawPost is one post object as returned by the post scraper. Field
// names follow the provider's dataset schema; values may be missing or
// zero and must be treated defensively.
//
//nolint:govet // fieldalignment: mirrors the provider's schema order
type RawPost struct {
	ID              string       `json:"id"`
	Type            string       `json:"type"`
	URL             string       `json:"url"`
	Caption         string       `json:"caption"`
	Text            string       `json:"text"`
	Timestamp       string       `json:"timestamp"`
	LikesCount      int          `json:"likesCount"`
	CommentsCount   int          `json:"commentsCount"`
	VideoViewCount  int          `json:"videoViewCount"`
	VideoPlayCount  int          `json:"videoPlayCount"`
	PaidPartnership bool         `json:"paidPartnership"`
	IsSponsored     bool         `json:"isSponsored"`
	OwnerUsername   string       `json:"ownerUsername"`
	Hashtags        []string     `json:"hashtags"`
	Mentions        []string     `json:"mentions"`
	LatestComments  []RawComment `json:"latestComments"`
}

// RawProfile is the profile object returned by the profile scraper.
//
//nolint:govet // fieldalignment: mirrors the provider's schema order
type RawProfile struct {
	Username             string    `json:"username"`
	FullName             string    `json:"fullName"`
	Name                 string    `json:"name"`
	Biography            string    `json:"biography"`
	Bio                  string    `json:"bio"`
	ExternalURL          string    `json:"externalUrl"`
	Website              string    `json:"website"`
	ProfilePicURL        string    `json:"profilePicUrl"`
	Verified             bool      `json:"verified"`
	BusinessAccount      bool      `json:"businessAccount"`
	BusinessCategoryName string    `json:"businessCategoryName"`
	FollowersCount       int       `json:"followersCount"`
	FollowsCount         int       `json:"followsCount"`
	PostsCount           int       `json:"postsCount"`
	Posts                []RawPost `json:"posts"`
	LatestPosts          []RawPost `json:"latestPosts"`
}

// EmbeddedPosts returns posts bundled inside a combined profile
// response, whichever field the provider populated.
func (p *RawProfile) EmbeddedPosts() []RawPost {
	if len(p.Posts) > 0 {
		return p.Posts
	}
	return p.LatestPosts
}

// DisplayName returns whichever name field the provider populated.
func (p *RawProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Name
}

// BioText returns whichever bio field the provider populated.
func (p *RawProfile) BioText() string {
	if p.Biography != "" {
		return p.Biography
	}
	return p.Bio
}

// WebsiteURL returns whichever website field the provider populated.
func (p *RawProfile) WebsiteURL() string {
	if p.ExternalURL != "" {
		return p.ExternalURL
	}
	return p.Website
}
