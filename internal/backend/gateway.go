// Package backend talks to the WordPress/WooCommerce REST API of each
// configured environment.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/posbridge/pricing-service/internal/http"
	"github.com/posbridge/pricing-service/internal/http/ratelimit"
	"github.com/posbridge/pricing-service/internal/pricing"
)

// ErrUnknownEnvironment is returned for an environment that is not configured.
var ErrUnknownEnvironment = errors.New("backend: unknown environment")

const (
	DefaultCategoryFieldsPath = "/wp-json/blueprints/v1/category-fields"
	DefaultPricingRulesPath   = "/wp-json/blueprints/v1/pricing-rules"
	DefaultProductPath        = "/wp-json/wc/v3/products/{id}"
)

// Environment is one backend deployment.
type Environment struct {
	Name           string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
}

// Options configures request paths and transport behaviour shared by every
// environment.
type Options struct {
	CategoryFieldsPath string
	PricingRulesPath   string
	// ProductPath contains an {id} placeholder.
	ProductPath string
	Timeout     time.Duration
	RateLimit   ratelimit.Config
	// ClientOptions are appended to every environment's client.
	ClientOptions []http.Option
}

type envClient struct {
	base   *url.URL
	client *http.Client
}

// Gateway implements rulestore.Backend and engine.ProductSource.
type Gateway struct {
	clients map[string]*envClient
	opts    Options
	logger  *zerolog.Logger
}

// New creates a gateway with one client per environment.
func New(envs []Environment, opts Options, logger *zerolog.Logger) (*Gateway, error) {
	if opts.CategoryFieldsPath == "" {
		opts.CategoryFieldsPath = DefaultCategoryFieldsPath
	}
	if opts.PricingRulesPath == "" {
		opts.PricingRulesPath = DefaultPricingRulesPath
	}
	if opts.ProductPath == "" {
		opts.ProductPath = DefaultProductPath
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "backend_gateway").Logger()

	g := &Gateway{clients: make(map[string]*envClient, len(envs)), opts: opts, logger: &l}
	for _, env := range envs {
		base, err := url.Parse(strings.TrimRight(env.BaseURL, "/"))
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("environment %q: invalid base url %q", env.Name, env.BaseURL)
		}
		clientOpts := []http.Option{http.WithTimeout(opts.Timeout)}
		if env.ConsumerKey != "" {
			clientOpts = append(clientOpts, http.WithBasicAuth(env.ConsumerKey, env.ConsumerSecret))
		}
		clientOpts = append(clientOpts, opts.ClientOptions...)
		g.clients[env.Name] = &envClient{
			base:   base,
			client: http.NewClient(opts.RateLimit, clientOpts...),
		}
	}
	return g, nil
}

// Environments returns the configured environment names, sorted.
func (g *Gateway) Environments() []string {
	names := make([]string, 0, len(g.clients))
	for name := range g.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether env is configured.
func (g *Gateway) Has(env string) bool {
	_, ok := g.clients[env]
	return ok
}

// CategoryFields fetches the category field sets of env.
func (g *Gateway) CategoryFields(ctx context.Context, env string) ([]pricing.CategoryFieldSet, error) {
	var sets []pricing.CategoryFieldSet
	if err := g.getList(ctx, env, g.opts.CategoryFieldsPath, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// PricingRules fetches every pricing rule of env, active or not.
func (g *Gateway) PricingRules(ctx context.Context, env string) ([]pricing.PricingRule, error) {
	var rules []pricing.PricingRule
	if err := g.getList(ctx, env, g.opts.PricingRulesPath, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ProductName fetches the display name of a product.
func (g *Gateway) ProductName(ctx context.Context, env string, productID int) (string, error) {
	c, err := g.client(env)
	if err != nil {
		return "", err
	}
	path := strings.ReplaceAll(g.opts.ProductPath, "{id}", strconv.Itoa(productID))

	var product struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := c.client.GetJSON(ctx, c.resolve(path), &product); err != nil {
		return "", fmt.Errorf("fetch product %d: %w", productID, err)
	}
	return product.Name, nil
}

func (g *Gateway) client(env string) (*envClient, error) {
	c, ok := g.clients[env]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
	return c, nil
}

// getList decodes a JSON array, either bare or wrapped in an object under
// "data", "items", "rules" or "categories".
func (g *Gateway) getList(ctx context.Context, env, path string, out any) error {
	c, err := g.client(env)
	if err != nil {
		return err
	}
	target := c.resolve(path)

	var raw json.RawMessage
	if err := c.client.GetJSON(ctx, target, &raw); err != nil {
		return err
	}

	list, err := unwrapList(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	if err := json.Unmarshal(list, out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	g.logger.Debug().Str("environment", env).Str("url", target).Int("bytes", len(raw)).Msg("Fetched backend list")
	return nil
}

func unwrapList(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "items", "rules", "categories"} {
		if v, ok := envelope[key]; ok {
			return unwrapList(v)
		}
	}
	return nil, errors.New("response is neither a list nor a known envelope")
}

func (c *envClient) resolve(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}
