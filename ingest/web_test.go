package ingest

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtext/ident"
	"github.com/c360studio/semtext/prov"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name:    "valid https URL",
			url:     "https://go.dev/doc/effective_go",
			wantErr: false,
		},
		{
			name:    "http rejected",
			url:     "http://example.com",
			wantErr: true,
		},
		{
			name:    "localhost rejected",
			url:     "https://localhost:8080",
			wantErr: true,
		},
		{
			name:    "private IP rejected",
			url:     "https://192.168.1.1/path",
			wantErr: true,
		},
		{
			name:    "local domain rejected",
			url:     "https://docs.internal/page",
			wantErr: true,
		},
		{
			name:    "carrier-grade NAT rejected",
			url:     "https://100.64.0.1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"127.0.0.1", "10.0.0.5", "172.16.0.1", "192.168.1.1",
		"100.64.0.1", "169.254.1.1", "::1", "fc00::1", "fe80::1",
	}
	for _, s := range private {
		assert.True(t, IsPrivateIP(net.ParseIP(s)), s)
	}

	public := []string{"8.8.8.8", "93.184.216.34", "2606:4700::1111"}
	for _, s := range public {
		assert.False(t, IsPrivateIP(net.ParseIP(s)), s)
	}
}

func TestWebFetcherFromHTML(t *testing.T) {
	f := MustNewWebFetcher(FetchConfig{})
	page := `<html><head><title>Visit Note</title><script>alert(1)</script></head>` +
		`<body><h1>Summary</h1><p>Patient denies chest pain.</p></body></html>`

	doc, err := f.FromHTML("https://hospital.example/notes/1", []byte(page))
	require.NoError(t, err)

	assert.Equal(t, ident.Deterministic("https://hospital.example/notes/1"), doc.ID)
	assert.Contains(t, doc.Text(), "# Summary")
	assert.Contains(t, doc.Text(), "Patient denies chest pain.")
	assert.NotContains(t, doc.Text(), "alert(1)")
	assert.Equal(t, "Visit Note", doc.Metadata["title"])
	assert.Equal(t, "https://hospital.example/notes/1", doc.Metadata["url"])
}

func TestWebFetcherLongArticle(t *testing.T) {
	para := strings.Repeat("Patient reports intermittent chest pain radiating to the left arm, worse on exertion and relieved by rest. ", 10)
	page := `<html><head><title>Consultation Report</title></head><body>` +
		`<nav><a href="/home">Home</a> <a href="/about">About</a></nav>` +
		`<article><h2>History</h2><p>` + para + `</p></article>` +
		`<footer>Copyright</footer></body></html>`

	f := MustNewWebFetcher(FetchConfig{})
	doc, err := f.FromHTML("https://hospital.example/notes/2", []byte(page))
	require.NoError(t, err)

	assert.Contains(t, doc.Text(), "intermittent chest pain")
	assert.NotEmpty(t, doc.Metadata["title"])
}

func TestWebFetcherProv(t *testing.T) {
	f := MustNewWebFetcher(FetchConfig{})
	tracer := prov.NewTracer()
	f.SetProvTracer(tracer)

	doc, err := f.FromHTML("https://hospital.example/notes/3",
		[]byte("<html><body><p>short note</p></body></html>"))
	require.NoError(t, err)

	p, err := tracer.GetProv(doc.Raw().ID)
	require.NoError(t, err)
	require.NotNil(t, p.OpDesc)
	assert.Equal(t, "WebFetcher", p.OpDesc.Name)
	assert.Empty(t, p.SourceItems)
}

func TestWebFetcherFetchRejectsUnsafeURL(t *testing.T) {
	f := MustNewWebFetcher(FetchConfig{})
	_, err := f.Fetch(context.Background(), "http://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestFetchConfigValidate(t *testing.T) {
	assert.NoError(t, FetchConfig{}.Validate())
	assert.Error(t, FetchConfig{FetchTimeout: "soon"}.Validate())
	assert.Error(t, FetchConfig{MaxContentSize: -1}.Validate())
}

func TestExtractHTMLTitle(t *testing.T) {
	assert.Equal(t, "My Page",
		extractHTMLTitle([]byte("<html><head><title>My Page</title></head><body></body></html>")))
	assert.Equal(t, "Spaced",
		extractHTMLTitle([]byte("<html><head><title>  Spaced  </title></head></html>")))
	assert.Equal(t, "",
		extractHTMLTitle([]byte("<html><head></head><body>Content</body></html>")))
}

func TestExtractMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Hello World", extractMarkdownTitle("# Hello World\n\nContent"))
	assert.Equal(t, "Late Title", extractMarkdownTitle("intro\n\n# Late Title\n\nmore"))
	assert.Equal(t, "", extractMarkdownTitle("## Section\n\nContent"))
}

func TestCleanMarkdown(t *testing.T) {
	got := cleanMarkdown("Line 1\n\n\n\n\n\nLine 2   \n")
	assert.Equal(t, "Line 1\n\n\nLine 2", got)
}
