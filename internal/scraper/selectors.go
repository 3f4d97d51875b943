package scraper

// Search timeline DOM selectors
// These are isolated here because the site changes its markup
// Update these when scraping breaks

const (
	// Timeline item selectors
	StreamItem   = `li.js-stream-item`
	ItemIDAttr   = "data-item-id"
	TweetText    = `p.tweet-text`
	TweetDetails = `div.tweet`
	Timestamp    = `span._timestamp`

	// Author attributes on TweetDetails
	AuthorIDAttr     = "data-user-id"
	AuthorHandleAttr = "data-screen-name"
	AuthorNameAttr   = "data-name"

	TimestampAttr = "data-time-ms"

	// Engagement selectors
	ReplyCount   = `span.ProfileTweet-action--reply > span.ProfileTweet-actionCount`
	RetweetCount = `span.ProfileTweet-action--retweet > span.ProfileTweet-actionCount`
	LikeCount    = `span.ProfileTweet-action--favorite > span.ProfileTweet-actionCount`
	CountAttr    = "data-tweet-stat-count"
)
