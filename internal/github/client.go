package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type Client struct {
	Client *github.Client
	HTTP   *http.Client
}

// AppCredentials authenticate as a GitHub App installation instead of a
// personal token.
type AppCredentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

func (a AppCredentials) IsSet() bool {
	return a.AppID != 0 && a.InstallationID != 0 && strings.TrimSpace(a.PrivateKeyPath) != ""
}

type options struct {
	logger  *zap.Logger
	app     *AppCredentials
	baseURL string
	base    http.RoundTripper
}

type Option func(*options)

// WithRequestLogging logs every API request at debug level.
func WithRequestLogging(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithApp switches authentication to a GitHub App installation.
func WithApp(creds AppCredentials) Option {
	return func(o *options) {
		o.app = &creds
	}
}

// WithBaseURL points the client at a GitHub Enterprise API root.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(baseURL)
	}
}

// WithTransport replaces the underlying transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// loggingRoundTripper emits one debug entry per request, including status and
// latency.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("latency", time.Since(start).Truncate(time.Millisecond)),
	}
	if err != nil {
		t.logger.Debug("github request failed", append(fields, zap.Error(err))...)
		return resp, err
	}
	t.logger.Debug("github request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := o.base
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.logger != nil {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}

	switch {
	case o.app != nil && o.app.IsSet():
		itr, err := ghinstallation.NewKeyFromFile(transport, o.app.AppID, o.app.InstallationID, o.app.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("github client: app transport: %w", err)
		}
		if o.baseURL != "" {
			itr.BaseURL = strings.TrimSuffix(o.baseURL, "/")
		}
		transport = itr
	case token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	tc := &http.Client{Transport: transport}

	client := github.NewClient(tc)
	if o.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github client: base url: %w", err)
		}
	}

	return &Client{
		Client: client,
		HTTP:   tc,
	}, nil
}
