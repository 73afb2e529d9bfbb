package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

// Handler executes one named capability and returns its structured payload.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type capability struct {
	info    *schema.ToolInfo
	handler Handler
}

// GatewayOption customizes Gateway.
type GatewayOption func(*Gateway)

// WithCapability registers or replaces a capability. Tests use it to swap
// the network-backed handlers for fakes.
func WithCapability(info *schema.ToolInfo, h Handler) GatewayOption {
	return func(g *Gateway) {
		if info == nil || strings.TrimSpace(info.Name) == "" || h == nil {
			return
		}
		g.capabilities[info.Name] = capability{info: info, handler: h}
	}
}

func WithRetry(cfg RetryConfig) GatewayOption {
	return func(g *Gateway) {
		g.retry = cfg
	}
}

// Gateway is the uniform entry point to named external capabilities.
// Unknown tool names are a configuration error, malformed arguments a
// validation error, and transient transport failures are retried with
// backoff before being surfaced as unavailable.
type Gateway struct {
	capabilities map[string]capability
	retry        RetryConfig
	log          zerolog.Logger
}

func NewGateway(opts ...GatewayOption) *Gateway {
	news := newNewsClient()
	g := &Gateway{
		capabilities: map[string]capability{
			contractx.ToolStockSnapshot: {info: stockSnapshotInfo(), handler: fetchStockSnapshot},
			contractx.ToolNewsSearch:    {info: newsSearchInfo(), handler: news.search},
		},
		retry: DefaultRetryConfig(),
		log:   log.With().Str("component", "tool_gateway").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Infos lists the declared capabilities, for binding to tool-calling models.
func (g *Gateway) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(g.capabilities))
	for _, c := range g.capabilities {
		infos = append(infos, c.info)
	}
	return infos
}

func (g *Gateway) Invoke(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	c, ok := g.capabilities[tool]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: unknown tool %q", contractx.ErrConfiguration, tool)
	}

	if err := validateArgs(c.info, args); err != nil {
		return contractx.ToolResult{}, err
	}

	payload, err := withRetry(ctx, g.retry, func() (any, error) {
		return c.handler(ctx, args)
	})
	if err != nil {
		g.log.Warn().Str("tool", tool).Err(err).Msg("tool invocation failed")
		return contractx.ToolResult{}, err
	}

	return contractx.ToolResult{Tool: tool, Payload: payload}, nil
}

// validateArgs checks args against the capability's declared parameters.
func validateArgs(info *schema.ToolInfo, args map[string]any) error {
	if info == nil || info.ParamsOneOf == nil {
		return nil
	}
	params, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil || params == nil {
		return nil
	}
	for _, name := range params.Required {
		raw, ok := args[name]
		if !ok {
			return fmt.Errorf("%w: tool %s requires argument %q", contractx.ErrValidation, info.Name, name)
		}
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: tool %s argument %q is empty", contractx.ErrValidation, info.Name, name)
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

// intArg tolerates float64 because tool arguments round-trip through JSON.
func intArg(args map[string]any, key string, fallback int) int {
	raw, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
