package tiktok

// For You feed DOM selectors. TikTok changes these often; keep them here.
const (
	feedItemSelector  = `[data-e2e="recommend-list-item-container"], article[data-scroll-index]`
	videoLinkSelector = `a[href*="/video/"]`

	authorSelector  = `[data-e2e="video-author-uniqueid"], [data-e2e="browse-username"]`
	captionSelector = `[data-e2e="video-desc"], [data-e2e="browse-video-desc"]`
	soundSelector   = `[data-e2e="video-music"], [data-e2e="browse-music"]`

	likeCountSelector    = `[data-e2e="like-count"]`
	commentCountSelector = `[data-e2e="comment-count"]`
	shareCountSelector   = `[data-e2e="share-count"]`

	// Visible only to logged-out visitors.
	loginButtonSelector = `[data-e2e="top-login-button"]`

	// Verification puzzle shown instead of content.
	captchaSelector = `#captcha-verify-container, #captcha_container, .captcha_verify_container, [class*="captcha-verify"]`
)

// popupSelectors are consent and upsell dialogs that block keyboard focus.
var popupSelectors = []struct {
	selector string
	text     string
}{
	{"button", "Accept"},
	{"button", "Agree"},
	{"button", "Allow all"},
	{"button", "Not now"},
	{"button", "Continue"},
	{`[role="dialog"] button`, "Close"},
	{`button[aria-label="Close"]`, ""},
}

// centredVideoJS returns the href of the video link nearest the viewport centre.
const centredVideoJS = `() => {
	const centerY = window.innerHeight / 2;
	const links = Array.from(document.querySelectorAll('a[href*="/video/"]'))
		.map(a => {
			const r = a.getBoundingClientRect();
			return { href: a.href, r, dist: Math.abs(r.top + r.height / 2 - centerY) };
		})
		.filter(x => x.r.width > 0 && x.r.height > 0 && x.r.bottom > 0 && x.r.top < window.innerHeight)
		.sort((a, b) => a.dist - b.dist);
	if (links.length > 0) return links[0].href;
	return location.pathname.includes('/video/') ? location.href : '';
}`

// setLocalStorageJS writes key/value entries into the current origin's storage.
const setLocalStorageJS = `(entries) => {
	for (const [k, v] of Object.entries(entries)) {
		window.localStorage.setItem(k, v);
	}
	return Object.keys(entries).length;
}`
