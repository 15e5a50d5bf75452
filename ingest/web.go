package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/ident"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// Pre-compiled regexes, parsed once to avoid runtime compilation.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// FetchConfig holds web fetching configuration.
type FetchConfig struct {
	// FetchTimeout is the maximum time for fetching a web page.
	FetchTimeout string `yaml:"fetch_timeout,omitempty"`

	// MaxContentSize is the maximum response body size in bytes.
	MaxContentSize int64 `yaml:"max_content_size,omitempty"`

	// UserAgent is the User-Agent header for HTTP requests.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// DefaultFetchConfig returns the default fetch settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		FetchTimeout:   "30s",
		MaxContentSize: 10 * 1024 * 1024,
		UserAgent:      "semtext-ingest/1.0",
	}
}

// Validate checks if the configuration is valid.
func (c FetchConfig) Validate() error {
	if c.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
			return fmt.Errorf("invalid fetch_timeout: %w", err)
		}
	}
	if c.MaxContentSize < 0 {
		return fmt.Errorf("max_content_size must not be negative")
	}
	return nil
}

// GetFetchTimeout returns the fetch timeout as a duration.
func (c FetchConfig) GetFetchTimeout() time.Duration {
	if c.FetchTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetMaxContentSize returns the max content size with default.
func (c FetchConfig) GetMaxContentSize() int64 {
	if c.MaxContentSize <= 0 {
		return DefaultFetchConfig().MaxContentSize
	}
	return c.MaxContentSize
}

// WebFetcher builds text documents from web pages. Pages are fetched
// over HTTPS with SSRF protections, the main article content is
// extracted with readability when the page carries enough of it, and
// the result is converted to markdown. The document uid is derived
// from the URL.
type WebFetcher struct {
	client         *http.Client
	converter      *md.Converter
	userAgent      string
	maxContentSize int64
	desc           operation.Description
	tracer         *prov.Tracer
}

// NewWebFetcher creates a web fetcher with the given configuration.
// Returns an error if the configuration is invalid.
func NewWebFetcher(cfg FetchConfig) (*WebFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultFetchConfig().UserAgent
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	desc := operation.NewDescription("WebFetcher", map[string]any{
		"user_agent":       userAgent,
		"max_content_size": cfg.GetMaxContentSize(),
	})
	return &WebFetcher{
		client:         newHTTPClient(cfg.GetFetchTimeout()),
		converter:      converter,
		userAgent:      userAgent,
		maxContentSize: cfg.GetMaxContentSize(),
		desc:           desc,
	}, nil
}

// MustNewWebFetcher creates a web fetcher, panicking on invalid config.
func MustNewWebFetcher(cfg FetchConfig) *WebFetcher {
	f, err := NewWebFetcher(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

// Description returns the fetcher's operation description.
func (f *WebFetcher) Description() operation.Description {
	return f.desc
}

// SetProvTracer makes the fetcher record the provenance of every raw
// text segment it produces. Fetched documents have no traced inputs.
func (f *WebFetcher) SetProvTracer(tracer *prov.Tracer) {
	f.tracer = tracer
}

// Fetch retrieves a web page and returns it as a markdown document.
func (f *WebFetcher) Fetch(ctx context.Context, urlStr string) (*document.TextDocument, error) {
	if err := ValidateURL(urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	return f.FromHTML(urlStr, body)
}

// FromHTML converts already-fetched HTML into a markdown document.
// The page URL provides the document uid and resolves relative links
// during extraction.
func (f *WebFetcher) FromHTML(pageURL string, content []byte) (*document.TextDocument, error) {
	title, markdown, err := f.convert(pageURL, content)
	if err != nil {
		return nil, err
	}

	doc := document.NewWithID(ident.Deterministic(pageURL), markdown)
	doc.Metadata = map[string]any{"url": pageURL}
	if title != "" {
		doc.Metadata["title"] = title
	}

	if f.tracer != nil {
		if err := f.tracer.AddProv(doc.Raw(), f.desc, nil); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// convert turns HTML into markdown plus a page title. Readability
// strips navigation and page chrome when the page carries enough
// article content for it to find; short pages are converted whole
// after script and style removal.
func (f *WebFetcher) convert(pageURL string, content []byte) (string, string, error) {
	title := extractHTMLTitle(content)

	var extracted string
	if parsed, err := url.Parse(pageURL); err == nil && readability.Check(bytes.NewReader(content)) {
		if article, err := readability.FromReader(bytes.NewReader(content), parsed); err == nil {
			extracted = article.Content
			if article.Title != "" {
				title = article.Title
			}
		}
	}
	if extracted == "" {
		extracted = stripScripts(string(content))
	}

	markdown, err := f.converter.ConvertString(extracted)
	if err != nil {
		return "", "", fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)

	if title == "" {
		title = extractMarkdownTitle(markdown)
	}
	return title, markdown, nil
}

// newHTTPClient builds an HTTP client that re-validates every resolved
// IP and redirect target, so DNS rebinding and redirects cannot reach
// private addresses.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           safeDialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			if err := ValidateURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}

// extractHTMLTitle returns the content of the first <title> element.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// extractMarkdownTitle returns the first H1 heading of the markdown.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// stripScripts removes script and style blocks from raw HTML.
func stripScripts(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	return styleRe.ReplaceAllString(content, "")
}

// cleanMarkdown collapses excessive blank lines and trims trailing
// whitespace from converted markdown.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
